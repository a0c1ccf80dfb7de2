package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/exit-failover/config"
	"github.com/angeloszaimis/exit-failover/internal/coordinator"
	"github.com/angeloszaimis/exit-failover/internal/fleet"
	"github.com/angeloszaimis/exit-failover/internal/probe"
	"github.com/angeloszaimis/exit-failover/internal/registry"
	"github.com/angeloszaimis/exit-failover/internal/store"
)

// engine bundles the store-backed components a command operates on.
type engine struct {
	store       *store.Store
	registry    *registry.Registry
	coordinator *coordinator.Coordinator
}

func openEngine(cfg *config.Config, log *slog.Logger) (*engine, error) {
	s, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	p, err := probe.ForKind(cfg.Probe.Kind)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &engine{
		store:       s,
		registry:    registry.New(s),
		coordinator: coordinator.New(s, p, log),
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

func newRootCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "exit-failover",
		Short:         "Manage and fail over a fleet of overlay-network exit nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(cfg, log),
		newNodeAddCmd(cfg, log),
		newGroupCmd(cfg, log),
		newMemberCmd(cfg, log),
		newAssignCmd(cfg, log),
		newCheckCmd(cfg, log),
		newFailoverCmd(cfg, log),
		newHealthCmd(cfg, log),
		newHistoryCmd(cfg, log),
	)

	return root
}

func newNodeAddCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	var name, address string

	cmd := &cobra.Command{
		Use:   "node-add",
		Short: "Register an exit node",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			node, err := e.registry.AddNode(cmd.Context(), name, address)
			if err != nil {
				return err
			}
			fmt.Printf("node %d (%s) registered at %s\n", node.ID, node.Name, node.Address)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "unique node name")
	cmd.Flags().StringVar(&address, "address", "", "host:port the probe targets")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("address")
	return cmd
}

func newGroupCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	parent := &cobra.Command{Use: "group", Short: "Manage failover groups"}

	var (
		name              string
		strategy          string
		interval, timeout time.Duration
		degradedMs        int64
		failureThreshold  int
		recoveryThreshold int
	)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a failover group",
		RunE: func(cmd *cobra.Command, args []string) error {
			strat, err := fleet.StrategyFromString(strategy)
			if err != nil {
				return err
			}

			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			group, err := e.registry.CreateGroup(cmd.Context(), registry.GroupParams{
				Name:                name,
				Strategy:            strat,
				HealthCheckInterval: interval,
				HealthCheckTimeout:  timeout,
				DegradedThresholdMs: degradedMs,
				FailureThreshold:    failureThreshold,
				RecoveryThreshold:   recoveryThreshold,
			})
			if err != nil {
				return err
			}
			fmt.Printf("group %d (%s) created with strategy %s\n", group.ID, group.Name, group.Strategy)
			return nil
		},
	}

	create.Flags().StringVar(&name, "name", "", "unique group name")
	create.Flags().StringVar(&strategy, "strategy", "priority", "priority, round_robin, or latency")
	create.Flags().DurationVar(&interval, "interval", 30*time.Second, "health check interval")
	create.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "health check timeout")
	create.Flags().Int64Var(&degradedMs, "degraded-ms", 500, "latency above which a node is degraded")
	create.Flags().IntVar(&failureThreshold, "failure-threshold", 3, "consecutive failures before a node is failed")
	create.Flags().IntVar(&recoveryThreshold, "recovery-threshold", 2, "consecutive successes before a node recovers")
	create.MarkFlagRequired("name")

	var groupID int64
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a failover group and its memberships",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.registry.DeleteGroup(cmd.Context(), groupID); err != nil {
				return err
			}
			fmt.Printf("group %d deleted\n", groupID)
			return nil
		},
	}
	del.Flags().Int64Var(&groupID, "group", 0, "group id")
	del.MarkFlagRequired("group")

	parent.AddCommand(create, del)
	return parent
}

func newMemberCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	parent := &cobra.Command{Use: "member", Short: "Manage group membership"}

	var (
		groupID, nodeID int64
		priority        int
		weight          int
	)

	add := &cobra.Command{
		Use:   "add",
		Short: "Join a node to a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			err = e.registry.AddMember(cmd.Context(), registry.MemberParams{
				GroupID:        groupID,
				NodeID:         nodeID,
				StaticPriority: priority,
				Weight:         weight,
			})
			if err != nil {
				return err
			}
			fmt.Printf("node %d joined group %d\n", nodeID, groupID)
			return nil
		},
	}
	add.Flags().Int64Var(&groupID, "group", 0, "group id")
	add.Flags().Int64Var(&nodeID, "node", 0, "node id")
	add.Flags().IntVar(&priority, "priority", 100, "static priority (lower is preferred)")
	add.Flags().IntVar(&weight, "weight", 1, "selection weight")
	add.MarkFlagRequired("group")
	add.MarkFlagRequired("node")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove a node from a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.registry.RemoveMember(cmd.Context(), groupID, nodeID); err != nil {
				return err
			}
			fmt.Printf("node %d removed from group %d\n", nodeID, groupID)
			return nil
		},
	}
	remove.Flags().Int64Var(&groupID, "group", 0, "group id")
	remove.Flags().Int64Var(&nodeID, "node", 0, "node id")
	remove.MarkFlagRequired("group")
	remove.MarkFlagRequired("node")

	var enabled bool
	enable := &cobra.Command{
		Use:   "enable",
		Short: "Toggle a member in or out of selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.registry.SetMemberEnabled(cmd.Context(), groupID, nodeID, enabled); err != nil {
				return err
			}
			fmt.Printf("node %d in group %d enabled=%v\n", nodeID, groupID, enabled)
			return nil
		},
	}
	enable.Flags().Int64Var(&groupID, "group", 0, "group id")
	enable.Flags().Int64Var(&nodeID, "node", 0, "node id")
	enable.Flags().BoolVar(&enabled, "enabled", true, "whether the member participates in selection")
	enable.MarkFlagRequired("group")
	enable.MarkFlagRequired("node")

	parent.AddCommand(add, remove, enable)
	return parent
}

func newAssignCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	var (
		clientID string
		groupID  int64
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Bind a client peer to a failover group",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.registry.AssignClient(cmd.Context(), clientID, groupID); err != nil {
				return err
			}
			fmt.Printf("client %s assigned to group %d; run failover to pick an exit\n", clientID, groupID)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "client peer id")
	cmd.Flags().Int64Var(&groupID, "group", 0, "group id")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("group")
	return cmd
}

func newCheckCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one health-check cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			updated, err := e.coordinator.RunHealthChecks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("checked %d memberships\n", len(updated))
			return nil
		},
	}
}

func newFailoverCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "failover",
		Short: "Run one failover cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			events, err := e.coordinator.ProcessFailovers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d clients reassigned\n", len(events))
			return nil
		},
	}
}

func newHealthCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the current health snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			snapshot, err := e.coordinator.HealthSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			nodes, err := e.store.ListNodes(cmd.Context())
			if err != nil {
				return err
			}
			names := make(map[int64]string, len(nodes))
			for _, n := range nodes {
				names[n.ID] = n.Name
			}

			type nodeReport struct {
				Node   string `json:"node"`
				Health fleet.NodeHealth
			}
			report := make([]nodeReport, 0, len(snapshot))
			for _, h := range snapshot {
				report = append(report, nodeReport{Node: names[h.NodeID], Health: h})
			}
			return printJSON(report)
		},
	}
}

func newHistoryCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	var (
		groupID  int64
		clientID string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print failover history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			events, err := e.coordinator.History(cmd.Context(), store.EventFilter{
				GroupID:  groupID,
				ClientID: clientID,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			return printJSON(events)
		},
	}

	cmd.Flags().Int64Var(&groupID, "group", 0, "filter by group id")
	cmd.Flags().StringVar(&clientID, "client", "", "filter by client id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events returned")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
