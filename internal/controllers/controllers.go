package controllers

import (
	"statushub/internal/events"
	"statushub/internal/services"
	"statushub/internal/status"

	statusController "statushub/internal/controllers/status"
)

type Controllers struct {
	Status statusController.StatusControllerInterface
}

func New(
	aggregator *status.Aggregator,
	services services.Service,
	channel *events.Channel,
) Controllers {
	return Controllers{
		Status: statusController.New(aggregator, services.SessionHistory, channel),
	}
}
