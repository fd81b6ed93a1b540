package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Connect loads the AWS configuration, creates the client and lists one
// table to verify the credentials.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(a.region())}
	if a.config.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.AccessKeyID, a.config.SecretAccessKey, a.config.SessionToken,
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error loading AWS config: %w", err))
	}

	endpoint := a.endpoint()
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	a.mu.Lock()
	a.client = client
	a.mu.Unlock()
	if err := a.probe(ctx); err != nil {
		a.mu.Lock()
		a.client = nil
		a.mu.Unlock()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error testing DynamoDB connection: %w", err))
	}
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect drops the client and any buffered transaction. The SDK client
// holds no connection that needs closing.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.client = nil
	a.tx, a.inTx = nil, false
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)
	return nil
}

func (a *Adapter) probe(ctx context.Context) error {
	client, err := a.dynamoClient()
	if err != nil {
		return err
	}
	_, err = client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

func (a *Adapter) region() string {
	if a.config.Region != "" {
		return a.config.Region
	}
	return DefaultRegion
}

// endpoint returns the custom endpoint, if any. A Host that is not an AWS
// host (DynamoDB Local, LocalStack) is turned into an http(s) URL.
func (a *Adapter) endpoint() string {
	if a.config.Endpoint != "" {
		return a.config.Endpoint
	}
	if a.config.Host == "" || strings.Contains(a.config.Host, "amazonaws.com") {
		return ""
	}
	scheme := "http"
	if a.config.SSL {
		scheme = "https"
	}
	if a.config.Port > 0 {
		return fmt.Sprintf("%s://%s:%d", scheme, a.config.Host, a.config.Port)
	}
	return fmt.Sprintf("%s://%s", scheme, a.config.Host)
}
