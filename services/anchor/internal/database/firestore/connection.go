package firestore

import (
	"context"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Connect creates the client and lists one collection to verify access.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}
	if a.config.ProjectID == "" {
		return adapter.NewConfigurationError(a.GetDatabaseType(), "project_id", "project id is required")
	}

	client, err := firestore.NewClientWithDatabase(ctx, a.config.ProjectID, a.databaseID(), a.clientOptions()...)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to create client: %w", err))
	}

	a.mu.Lock()
	a.client = client
	a.mu.Unlock()

	if err := a.probe(ctx); err != nil {
		a.mu.Lock()
		a.client = nil
		a.mu.Unlock()
		_ = client.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to list collections: %w", err))
	}
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect closes the client.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return adapter.WrapError(a.GetDatabaseType(), "disconnect", err)
	}
	return nil
}

func (a *Adapter) databaseID() string {
	if a.config.DatabaseName != "" {
		return a.config.DatabaseName
	}
	return firestore.DefaultDatabaseID
}

// emulatorHost returns the emulator address from Endpoint, the
// emulator_host option or Host:Port when the emulator option is set.
func (a *Adapter) emulatorHost() string {
	if h := a.config.GetString("emulator_host", ""); h != "" {
		return h
	}
	if a.config.GetBool("emulator", false) {
		if a.config.Endpoint != "" {
			return a.config.Endpoint
		}
		return a.config.Address()
	}
	return ""
}

// clientOptions picks the transport and credentials. The emulator is
// reached over plaintext gRPC without authentication.
func (a *Adapter) clientOptions() []option.ClientOption {
	if host := a.emulatorHost(); host != "" {
		return []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}

	var opts []option.ClientOption
	switch {
	case a.config.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(a.config.CredentialsJSON)))
	case a.config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(a.config.CredentialsFile))
	}
	if a.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.config.Endpoint))
	}
	return opts
}
