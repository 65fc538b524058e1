package configdir

import "testing"

func TestStandaloneClusterConfigRoundTrip(t *testing.T) {
	s := NewStandalone("server-1")
	if s.GetServerID() != "server-1" {
		t.Fatalf("GetServerID = %q", s.GetServerID())
	}

	var seen ClusterConfig
	s.OnClusterConfigChange(func(cfg ClusterConfig) { seen = cfg })

	s.UpdateClusterConfig(ClusterConfig{ReplicationFactor: 3})
	if s.GetClusterConfig().ReplicationFactor != 3 {
		t.Fatalf("expected replication factor 3")
	}
	if seen.ReplicationFactor != 3 {
		t.Fatalf("expected callback to observe the update")
	}
}

func TestStandaloneServerConfigUpsertAndList(t *testing.T) {
	s := NewStandalone("server-1")

	var notified []ServerConfig
	s.OnServerConfigChange(func(cfg ServerConfig) { notified = append(notified, cfg) })

	s.UpdateServerConfig(ServerConfig{ServerID: "a", Addr: "10.0.0.1:7000"})
	s.UpdateServerConfig(ServerConfig{ServerID: "b", Addr: "10.0.0.2:7000"})
	s.UpdateServerConfig(ServerConfig{ServerID: "a", Addr: "10.0.0.9:7000"})

	servers := s.ListServers()
	if len(servers) != 2 {
		t.Fatalf("expected 2 distinct servers, got %d", len(servers))
	}
	if len(notified) != 3 {
		t.Fatalf("expected 3 callback invocations, got %d", len(notified))
	}
}

func TestStandaloneTableConfigLookup(t *testing.T) {
	s := NewStandalone("server-1")

	if _, found := s.GetTableConfig("prod", "events"); found {
		t.Fatalf("expected no table config before any update")
	}

	var last TableConfig
	s.OnTableConfigChange(func(cfg TableConfig) { last = cfg })

	s.UpdateTableConfig(TableConfig{TSDBNamespace: "prod", TableName: "events", KeyspaceType: 1})
	cfg, found := s.GetTableConfig("prod", "events")
	if !found {
		t.Fatalf("expected table config to be found after update")
	}
	if cfg.KeyspaceType != 1 {
		t.Fatalf("unexpected keyspace type: %v", cfg.KeyspaceType)
	}
	if last.TableName != "events" {
		t.Fatalf("expected callback to observe the update")
	}

	if _, found := s.GetTableConfig("prod", "other"); found {
		t.Fatalf("expected distinct table name to not be found")
	}
}
