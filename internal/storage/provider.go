package storage

import "renderfarm/internal/ports"

// Provider is the storage contract used by the coordinator.
type Provider = ports.StorageProvider
