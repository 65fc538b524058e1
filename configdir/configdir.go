// Package configdir defines the narrow configuration-directory interface
// this component depends on for server identity, cluster membership, and
// table schema lookup, plus an in-memory reference implementation used by
// tests and by cmd/metacored when no external directory is configured.
//
// Routing, namespace management, and distributed consensus over this
// state all live outside this package — ConfigDirectory is an external
// collaborator; Standalone exists only as its simplest possible
// implementation.
package configdir

import "github.com/getlantern/zenodb/common"

// ClusterConfig is the cluster-wide configuration this component reads:
// replication factor and the set of known servers.
type ClusterConfig struct {
	ReplicationFactor int
	Servers           []ServerConfig
}

// ServerConfig is one server's identity and dial address.
type ServerConfig struct {
	ServerID string
	Addr     string
}

// TableConfig is the slice of a table's definition this component needs:
// its namespace, its name, and its partition keyspace type.
type TableConfig struct {
	TSDBNamespace string
	TableName     string
	KeyspaceType  common.KeyspaceType
}

// ClusterConfigChangeFunc is invoked whenever the cluster configuration
// changes.
type ClusterConfigChangeFunc func(cfg ClusterConfig)

// ServerConfigChangeFunc is invoked whenever one server's configuration
// changes.
type ServerConfigChangeFunc func(cfg ServerConfig)

// TableConfigChangeFunc is invoked whenever a table's configuration
// changes.
type TableConfigChangeFunc func(cfg TableConfig)

// ConfigDirectory is the external configuration and cluster-membership
// collaborator this component reads: server identity, cluster topology,
// and table schema, each with a change-notification hook.
type ConfigDirectory interface {
	GetServerID() string

	GetClusterConfig() ClusterConfig
	OnClusterConfigChange(fn ClusterConfigChangeFunc)

	ListServers() []ServerConfig
	OnServerConfigChange(fn ServerConfigChangeFunc)

	GetTableConfig(tsdbNamespace, tableName string) (TableConfig, bool)
	OnTableConfigChange(fn TableConfigChangeFunc)
}
