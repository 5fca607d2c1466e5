package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rosgraph/internal/daemon"
	"rosgraph/internal/graph"
	"rosgraph/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return 0
	}
	switch args[0] {
	case "run":
		return runNode(args[1:], stdout, stderr)
	case "status":
		return runStatus(args[1:], stdout, stderr)
	case "nodes":
		return runNodes(args[1:], stdout, stderr)
	case "endpoints":
		return runEndpoints(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: rosgraph-node <run|status|nodes|endpoints> [args]")
	fmt.Fprintln(w, "  run       --name <node> [--namespace /ns] [--domain 0] [--meta-addr ip:port] [--debug]")
	fmt.Fprintln(w, "  status    [--n 20]")
	fmt.Fprintln(w, "  nodes     [--domain 0] [--wait 3s]")
	fmt.Fprintln(w, "  endpoints [--domain 0] [--wait 3s] [--kind pub|sub]")
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return filepath.Join(h, ".rosgraph")
}

func runNode(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "node name (required)")
	namespace := fs.String("namespace", "/", "node namespace")
	domain := fs.Int("domain", 0, "discovery domain id")
	metaAddr := fs.String("meta-addr", "", "unicast metatraffic listen addr (host:port)")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *name == "" {
		fmt.Fprintln(stderr, "missing --name")
		return 1
	}
	if *debug {
		_ = os.Setenv("ROSGRAPH_DEBUG", "1")
	}
	runner, err := daemon.NewRunner(homeDir(), daemon.Options{
		Name:      *name,
		Namespace: *namespace,
		DomainID:  *domain,
		MetaAddr:  *metaAddr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "start failed: %v\n", err)
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(stdout, "READY guid=%s domain=%d\n", runner.Part.GUID, *domain)
	if err := runner.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "run failed: %v\n", err)
		return 1
	}
	return 0
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 20, "recent changes to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := filepath.Join(homeDir(), "metrics.json")
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "status: no snapshot at %s (is a node running?)\n", path)
		return 1
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Fprintf(stderr, "status: bad snapshot: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "generated_at=%s\n", snap.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(stdout, "participants_applied=%d endpoints_applied=%d removals=%d\n",
		snap.Discovery.ParticipantsApplied, snap.Discovery.EndpointsApplied, snap.Discovery.Removals)
	fmt.Fprintf(stdout, "drop_malformed=%d drop_unknown_handle=%d\n",
		snap.Discovery.DropMalformed, snap.Discovery.DropUnknownHandle)
	fmt.Fprintf(stdout, "guard_triggers=%d lease_expiries=%d\n",
		snap.Graph.GuardTriggers, snap.Graph.LeaseExpiries)
	recent := snap.Recent
	if len(recent) > *n {
		recent = recent[len(recent)-*n:]
	}
	for _, h := range recent {
		state := "alive"
		if h.Disposed {
			state = "disposed"
		}
		if h.Topic != "" {
			fmt.Fprintf(stdout, "recent %s %s topic=%s %s\n", h.Kind, h.GUID, h.Topic, state)
			continue
		}
		fmt.Fprintf(stdout, "recent %s %s %s\n", h.Kind, h.GUID, state)
	}
	return 0
}

// observe runs a passive participant for the wait window and hands the
// populated runner to report.
func observe(domain int, wait time.Duration, stderr io.Writer, report func(*daemon.Runner)) int {
	runner, err := daemon.NewRunner(homeDir(), daemon.Options{
		Name:      "rosgraph_cli",
		Namespace: "/",
		DomainID:  domain,
	})
	if err != nil {
		fmt.Fprintf(stderr, "observe failed: %v\n", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := runner.RunObserver(ctx); err != nil {
		fmt.Fprintf(stderr, "observe failed: %v\n", err)
		return 1
	}
	report(runner)
	return 0
}

func runNodes(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nodes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	domain := fs.Int("domain", 0, "discovery domain id")
	wait := fs.Duration("wait", 3*time.Second, "how long to listen for announcements")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	code := 0
	exit := observe(*domain, *wait, stderr, func(r *daemon.Runner) {
		var names, namespaces []string
		if err := r.Part.NodeNames(&names, &namespaces); err != nil {
			fmt.Fprintf(stderr, "nodes: %v\n", err)
			code = 1
			return
		}
		// index 0 is this transient observer
		for i := 1; i < len(names); i++ {
			fmt.Fprintf(stdout, "%s %s\n", names[i], namespaces[i])
		}
	})
	if exit != 0 {
		return exit
	}
	return code
}

func runEndpoints(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("endpoints", flag.ContinueOnError)
	fs.SetOutput(stderr)
	domain := fs.Int("domain", 0, "discovery domain id")
	wait := fs.Duration("wait", 3*time.Second, "how long to listen for announcements")
	kindFlag := fs.String("kind", "", "pub, sub, or empty for both")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var kinds []graph.EntityKind
	switch *kindFlag {
	case "":
		kinds = []graph.EntityKind{graph.Publisher, graph.Subscriber}
	case "pub":
		kinds = []graph.EntityKind{graph.Publisher}
	case "sub":
		kinds = []graph.EntityKind{graph.Subscriber}
	default:
		fmt.Fprintf(stderr, "bad --kind %q\n", *kindFlag)
		return 1
	}
	return observe(*domain, *wait, stderr, func(r *daemon.Runner) {
		for _, kind := range kinds {
			for _, ep := range r.Part.Registry.Endpoints(kind) {
				fmt.Fprintf(stdout, "%s %s topic=%s type=%s\n", kind, ep.GUID, ep.Topic, ep.Type)
			}
		}
	})
}
