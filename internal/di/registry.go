package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/delivery/internal/platform/config"
	pfirestore "github.com/hanko-field/delivery/internal/platform/firestore"
	"github.com/hanko-field/delivery/internal/platform/storage"
	"github.com/hanko-field/delivery/internal/repositories"
	firestorerepo "github.com/hanko-field/delivery/internal/repositories/firestore"
	"github.com/hanko-field/delivery/internal/repositories/snapshot"
)

// OpenRegistry builds the repository registry for the configured source. Remote sources are
// wrapped in a circuit breaker.
func OpenRegistry(_ context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Source.Kind {
	case config.SourceFile:
		repo, err := snapshot.NewRepository(snapshot.FileSource(cfg.Source.SnapshotPath))
		if err != nil {
			return nil, err
		}
		return snapshot.NewRegistry(repo, config.SourceFile)

	case config.SourceGCS:
		reader := storage.NewReader()
		repo, err := snapshot.NewRepository(snapshot.ObjectSource(reader, cfg.Source.Bucket, cfg.Source.Object))
		if err != nil {
			_ = reader.Close()
			return nil, err
		}
		reg, err := snapshot.NewRegistry(repo, config.SourceGCS, reader.Close)
		if err != nil {
			_ = reader.Close()
			return nil, err
		}
		return repositories.NewBreakerRegistry(reg, cfg.Breaker, logger.Named("breaker"))

	case config.SourceFirestore, "":
		provider := pfirestore.NewProvider(cfg.Firestore, firestoreProviderOptions(cfg.Firestore)...)
		reg, err := firestorerepo.NewRegistry(provider, cfg.Firestore)
		if err != nil {
			_ = provider.Close(context.Background())
			return nil, err
		}
		return repositories.NewBreakerRegistry(reg, cfg.Breaker, logger.Named("breaker"))

	default:
		return nil, fmt.Errorf("unsupported delivery source %q", cfg.Source.Kind)
	}
}

// firestoreUserAgent tags delivery traffic in the Firestore request logs.
const firestoreUserAgent = "hanko-field-delivery"

func firestoreProviderOptions(cfg config.FirestoreConfig) []pfirestore.ProviderOption {
	return []pfirestore.ProviderOption{
		pfirestore.WithDialTimeout(cfg.DialTimeout),
		pfirestore.WithClientOptions(option.WithUserAgent(firestoreUserAgent)),
	}
}
