package port

import (
	"github.com/vertextoedge/estateshare/internal/domain/repository"
)

// ConnectionRepository is an alias to domain repository interface
type ConnectionRepository = repository.ConnectionRepository

// ShareTokenRepository is an alias to domain repository interface
type ShareTokenRepository = repository.ShareTokenRepository

// StatsRepository is an alias to domain repository interface
type StatsRepository = repository.StatsRepository

// Store is an alias to domain repository interface
type Store = repository.Store
