// Package handlers wires HTTP routes to the enforcement pipeline and the
// typed repositories. Every dependency is injected through the API struct;
// nothing here reaches for ambient global state.
package handlers

import (
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/enforcement"
	"github.com/trafficgrid/backend/repository"
	"github.com/trafficgrid/backend/services"
	"gorm.io/gorm"
)

// API holds the handler dependencies.
type API struct {
	db         *gorm.DB // auth/user lookups only
	repos      *repository.Repositories
	pipeline   *enforcement.Pipeline
	ledger     *enforcement.Ledger
	calculator *enforcement.Calculator
	heartbeats *services.HeartbeatService
	hub        *services.EventHub
	publisher  bus.Publisher
}

// NewAPI builds the handler set.
func NewAPI(
	db *gorm.DB,
	repos *repository.Repositories,
	pipeline *enforcement.Pipeline,
	ledger *enforcement.Ledger,
	calculator *enforcement.Calculator,
	heartbeats *services.HeartbeatService,
	hub *services.EventHub,
	publisher bus.Publisher,
) *API {
	return &API{
		db:         db,
		repos:      repos,
		pipeline:   pipeline,
		ledger:     ledger,
		calculator: calculator,
		heartbeats: heartbeats,
		hub:        hub,
		publisher:  publisher,
	}
}
