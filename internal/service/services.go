// Package service contains the business logic.
//
// It sits between the driver and the repository layer. It fetches counts
// from the search service and persists them through repository methods.
package service

import (
	"github.com/deppfellow/countstore/internal/app"
	"github.com/deppfellow/countstore/internal/repository"
)

type Services struct {
	Count *CountService
}

func NewServices(a *app.App, repos *repository.Repositories) (*Services, error) {
	countService := NewCountService(a.Search, repos.Records, a.Logger)

	return &Services{
		Count: countService,
	}, nil
}
