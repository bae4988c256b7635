package mongo

import (
	"context"
	"net/url"
	"strings"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cuemby/collstore/pkg/collstore"
)

func init() {
	collstore.Register("mongodb", connect)
	collstore.Register("mongodb+srv", connect)
}

// connect implements collstore.Factory for mongodb://[user:pass@]host[:port]/dbname
// and mongodb+srv:// connection URLs, delegated to the driver's own parser.
func connect(ctx context.Context, u *url.URL, opts collstore.ConnectOptions) (collstore.Database, error) {
	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(u.String()))
	if err != nil {
		return nil, &collstore.ConfigRejectedError{Reason: "mongo: " + err.Error()}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		dbName = "collstore"
	}
	return newDatabase(client, dbName), nil
}
