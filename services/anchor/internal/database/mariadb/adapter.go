// Package mariadb adapts MariaDB through the MySQL driver. Only the catalog
// queries that differ from MySQL are overridden.
package mariadb

import (
	"context"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/mysql"
)

func init() {
	adapter.Register(dbcapabilities.MariaDB, New)
}

// Adapter implements adapter.Adapter for MariaDB.
type Adapter struct {
	*mysql.Adapter
}

// New creates a MariaDB adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return &Adapter{Adapter: mysql.NewWithType(dbcapabilities.MariaDB, config)}
}

// GetRoles lists roles. MariaDB keeps them in mysql.user flagged is_role.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	return a.ListRoles(ctx, "SELECT User FROM mysql.user WHERE is_role = 'Y' ORDER BY User")
}

// GetUsers lists login accounts, excluding roles.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	users, err := a.Adapter.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := a.GetRoles(ctx)
	if err != nil {
		return users, nil
	}
	isRole := make(map[string]bool, len(roles))
	for _, r := range roles {
		isRole[r.Name] = true
	}
	logins := users[:0]
	for _, u := range users {
		// Roles are stored with an empty host.
		if u.Host == "" && isRole[u.Name] {
			continue
		}
		logins = append(logins, u)
	}
	return logins, nil
}

var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.RoleLister = (*Adapter)(nil)
	_ adapter.UserLister = (*Adapter)(nil)
	_ adapter.Transactor = (*Adapter)(nil)
)
