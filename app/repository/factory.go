package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles every repository the service uses
type Repositories struct {
	Opportunity    OpportunityRepository
	Stage          StageRepository
	Credential     CredentialRepository
	PendingWebhook PendingWebhookRepository
	WebhookEvent   WebhookEventRepository
}

// NewRepositories creates all repositories over one connection pool
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Opportunity:    NewOpportunityRepository(db),
		Stage:          NewStageRepository(db),
		Credential:     NewCredentialRepository(db),
		PendingWebhook: NewPendingWebhookRepository(db),
		WebhookEvent:   NewWebhookEventRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
