// metacored runs the partitioned-table metadata and partition-map core as
// a standalone process: it loads a metadata file, serves it from an
// atomically-swappable partition map, and exposes read-only status over
// HTTP. It starts no replication workers. It does not serve SQL queries —
// planning and execution are a separate component's job.
package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getlantern/golog"
	"github.com/gorilla/mux"
	"github.com/vharitonsky/iniflags"

	"github.com/getlantern/zenodb/configdir"
	"github.com/getlantern/zenodb/dnscache"
	"github.com/getlantern/zenodb/metadata"
	"github.com/getlantern/zenodb/partitionmap"
	"github.com/getlantern/zenodb/statusserver"
)

var (
	log = golog.LoggerFor("metacored")

	metadataFile   = flag.String("metadatafile", "metadata.dat", "path to the metadata file to load at startup")
	serverID       = flag.String("serverid", "", "this server's unique id; defaults to the hostname")
	statusAddr     = flag.String("statusaddr", "localhost:17720", "address at which to serve read-only status/metrics over HTTP")
	pprofAddr      = flag.String("pprofaddr", "localhost:6060", "address at which to serve net/http/pprof profiles")
	replicateEvery = flag.Duration("replicateevery", 10*time.Second, "replication tick interval; not read by this process, which starts no replication workers")
	uploadTimeout  = flag.Duration("uploadtimeout", 30*time.Second, "per-request transport timeout for replication uploads; not read by this process, which starts no replication workers")
	dnsCacheTTL    = flag.Duration("dnscachettl", 5*time.Minute, "how long to cache resolved replica addresses")
)

func main() {
	iniflags.Parse()

	go func() {
		log.Debugf("Serving pprof at %v", *pprofAddr)
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			log.Errorf("pprof server exited: %v", err)
		}
	}()

	dnscache.Init(*dnsCacheTTL)

	id := *serverID
	if id == "" {
		host, err := os.Hostname()
		if err != nil {
			log.Fatalf("-serverid not set and hostname could not be determined: %v", err)
		}
		id = host
	}
	directory := configdir.NewStandalone(id)

	pm := partitionmap.New(loadInitialMetadata(*metadataFile))

	router := mux.NewRouter()
	statusserver.Configure(router, &statusserver.Opts{PartitionMap: pm})

	httpServer := &http.Server{Addr: *statusAddr, Handler: router}
	go func() {
		log.Debugf("Serving status endpoints at %v", *statusAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("status server exited: %v", err)
		}
	}()

	log.Debugf("metacored started as server %q (cluster config directory: %T)", directory.GetServerID(), directory)

	waitForShutdownSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("Error shutting down status server: %v", err)
	}
}

// loadInitialMetadata loads path if it exists; a missing file is not
// fatal at startup (a fresh server has no partitions to serve yet), any
// other error is.
func loadInitialMetadata(path string) *metadata.File {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("No metadata file at %v yet, starting with an empty partition map", path)
			return nil
		}
		log.Fatalf("Unable to open metadata file at %v: %v", path, err)
	}
	defer f.Close()

	file := &metadata.File{}
	if err := file.Decode(f); err != nil {
		log.Fatalf("Unable to decode metadata file at %v: %v", path, err)
	}
	return file
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Debugf("Got signal %v, shutting down", sig)
}
