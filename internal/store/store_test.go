package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
	"github.com/angeloszaimis/exit-failover/internal/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

var _ = Describe("Store", func() {
	var (
		ctx     context.Context
		tempDir string
		s       *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tempDir, err = os.MkdirTemp("", "store-test-*")
		Expect(err).NotTo(HaveOccurred())

		s, err = store.Open(filepath.Join(tempDir, "failover.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		s.Close()
		os.RemoveAll(tempDir)
	})

	groupParams := func(name string) fleet.FailoverGroup {
		return fleet.FailoverGroup{
			Name:                name,
			Strategy:            fleet.StrategyPriority,
			HealthCheckInterval: 30 * time.Second,
			HealthCheckTimeout:  5 * time.Second,
			DegradedThresholdMs: 500,
			FailureThreshold:    3,
			RecoveryThreshold:   2,
		}
	}

	Describe("Open", func() {
		It("should reopen an already-migrated database", func() {
			path := filepath.Join(tempDir, "reopen.db")

			first, err := store.Open(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Close()).To(Succeed())

			second, err := store.Open(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Close()).To(Succeed())
		})
	})

	Describe("groups", func() {
		It("should round-trip a created group", func() {
			created, err := s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeZero())

			got, err := s.GetGroup(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(created))
			Expect(got.Strategy).To(Equal(fleet.StrategyPriority))
			Expect(got.HealthCheckInterval).To(Equal(30 * time.Second))
		})

		It("should reject a duplicate group name", func() {
			_, err := s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).To(MatchError(store.ErrDuplicateGroupName))
		})

		It("should update thresholds but keep identity", func() {
			created, err := s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).NotTo(HaveOccurred())

			created.FailureThreshold = 5
			created.Strategy = fleet.StrategyLatency
			Expect(s.UpdateGroupThresholds(ctx, created)).To(Succeed())

			got, err := s.GetGroup(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FailureThreshold).To(Equal(5))
			Expect(got.Strategy).To(Equal(fleet.StrategyLatency))
			Expect(got.Name).To(Equal("eu-exits"))
		})

		It("should return ErrNotFound for a missing group", func() {
			_, err := s.GetGroup(ctx, 999)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should cascade group deletion to memberships", func() {
			group, err := s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).NotTo(HaveOccurred())
			node, err := s.CreateNode(ctx, "exit-1", "10.0.0.1:51820")
			Expect(err).NotTo(HaveOccurred())

			Expect(s.AddMembership(ctx, fleet.GroupMembership{
				GroupID: group.ID, NodeID: node.ID, Weight: 1, Enabled: true,
			})).To(Succeed())

			Expect(s.DeleteGroup(ctx, group.ID)).To(Succeed())

			members, err := s.ListMemberships(ctx, group.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(BeEmpty())

			// health history survives the group
			_, err = s.GetNodeHealth(ctx, node.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("nodes", func() {
		It("should reject a duplicate node name", func() {
			_, err := s.CreateNode(ctx, "exit-1", "10.0.0.1:51820")
			Expect(err).NotTo(HaveOccurred())

			_, err = s.CreateNode(ctx, "exit-1", "10.0.0.2:51820")
			Expect(err).To(MatchError(store.ErrDuplicateNodeName))
		})
	})

	Describe("memberships", func() {
		var (
			group fleet.FailoverGroup
			node  fleet.ExitNode
		)

		BeforeEach(func() {
			var err error
			group, err = s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).NotTo(HaveOccurred())
			node, err = s.CreateNode(ctx, "exit-1", "10.0.0.1:51820")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should initialize node health to healthy with zero counters", func() {
			Expect(s.AddMembership(ctx, fleet.GroupMembership{
				GroupID: group.ID, NodeID: node.ID, Weight: 1, Enabled: true,
			})).To(Succeed())

			h, err := s.GetNodeHealth(ctx, node.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Status).To(Equal(fleet.StatusHealthy))
			Expect(h.ConsecutiveFailures).To(BeZero())
			Expect(h.ConsecutiveSuccesses).To(BeZero())
			Expect(h.LatencyMs).To(BeNil())
			Expect(h.FailureReason).To(BeNil())
		})

		It("should not reset health when the node joins a second group", func() {
			Expect(s.AddMembership(ctx, fleet.GroupMembership{
				GroupID: group.ID, NodeID: node.ID, Weight: 1, Enabled: true,
			})).To(Succeed())

			h, err := s.GetNodeHealth(ctx, node.ID)
			Expect(err).NotTo(HaveOccurred())
			h.Status = fleet.StatusFailed
			h.ConsecutiveFailures = 4
			Expect(s.UpsertNodeHealth(ctx, h)).To(Succeed())

			second, err := s.CreateGroup(ctx, groupParams("us-exits"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.AddMembership(ctx, fleet.GroupMembership{
				GroupID: second.ID, NodeID: node.ID, Weight: 1, Enabled: true,
			})).To(Succeed())

			got, err := s.GetNodeHealth(ctx, node.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(fleet.StatusFailed))
			Expect(got.ConsecutiveFailures).To(Equal(4))
		})

		It("should reject a duplicate membership", func() {
			m := fleet.GroupMembership{GroupID: group.ID, NodeID: node.ID, Weight: 1, Enabled: true}
			Expect(s.AddMembership(ctx, m)).To(Succeed())
			Expect(s.AddMembership(ctx, m)).To(MatchError(store.ErrDuplicateMembership))
		})

		It("should filter disabled members when asked", func() {
			Expect(s.AddMembership(ctx, fleet.GroupMembership{
				GroupID: group.ID, NodeID: node.ID, Weight: 1, Enabled: true,
			})).To(Succeed())
			Expect(s.SetMembershipEnabled(ctx, group.ID, node.ID, false)).To(Succeed())

			enabled, err := s.ListMemberships(ctx, group.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(enabled).To(BeEmpty())

			all, err := s.ListMemberships(ctx, group.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Enabled).To(BeFalse())
		})
	})

	Describe("node health", func() {
		It("should round-trip nullable fields", func() {
			node, err := s.CreateNode(ctx, "exit-1", "10.0.0.1:51820")
			Expect(err).NotTo(HaveOccurred())

			latency := 12.5
			reason := "high latency: 12ms"
			now := time.Now().UTC().Truncate(time.Second)

			h := fleet.NodeHealth{
				NodeID:               node.ID,
				Status:               fleet.StatusDegraded,
				LatencyMs:            &latency,
				LastCheckAt:          now,
				ConsecutiveSuccesses: 3,
				LastSuccessAt:        &now,
				FailureReason:        &reason,
			}
			Expect(s.UpsertNodeHealth(ctx, h)).To(Succeed())

			got, err := s.GetNodeHealth(ctx, node.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(fleet.StatusDegraded))
			Expect(*got.LatencyMs).To(Equal(12.5))
			Expect(*got.FailureReason).To(Equal(reason))
			Expect(got.LastFailureAt).To(BeNil())
			Expect(got.LastCheckAt.Equal(now)).To(BeTrue())
		})
	})

	Describe("assignments and failover events", func() {
		var (
			group        fleet.FailoverGroup
			nodeX, nodeY fleet.ExitNode
		)

		BeforeEach(func() {
			var err error
			group, err = s.CreateGroup(ctx, groupParams("eu-exits"))
			Expect(err).NotTo(HaveOccurred())
			nodeX, err = s.CreateNode(ctx, "exit-x", "10.0.0.1:51820")
			Expect(err).NotTo(HaveOccurred())
			nodeY, err = s.CreateNode(ctx, "exit-y", "10.0.0.2:51820")
			Expect(err).NotTo(HaveOccurred())

			for _, n := range []fleet.ExitNode{nodeX, nodeY} {
				Expect(s.AddMembership(ctx, fleet.GroupMembership{
					GroupID: group.ID, NodeID: n.ID, Weight: 1, Enabled: true,
				})).To(Succeed())
			}
		})

		It("should report assignments with no active exit as needing failover", func() {
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{
				ClientID: "peer-1", ExitGroupID: &group.ID,
			})).To(Succeed())

			pending, err := s.AssignmentsNeedingFailover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].ClientID).To(Equal("peer-1"))
		})

		It("should report assignments on a failed exit as needing failover", func() {
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{
				ClientID: "peer-1", ExitGroupID: &group.ID, ActiveExitID: &nodeX.ID,
			})).To(Succeed())

			pending, err := s.AssignmentsNeedingFailover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())

			h, err := s.GetNodeHealth(ctx, nodeX.ID)
			Expect(err).NotTo(HaveOccurred())
			h.Status = fleet.StatusFailed
			Expect(s.UpsertNodeHealth(ctx, h)).To(Succeed())

			pending, err = s.AssignmentsNeedingFailover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
		})

		It("should ignore unassigned clients", func() {
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{ClientID: "peer-1"})).To(Succeed())

			pending, err := s.AssignmentsNeedingFailover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("should commit the assignment update and event together", func() {
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{
				ClientID: "peer-1", ExitGroupID: &group.ID,
			})).To(Succeed())

			event, err := s.RecordFailover(ctx, fleet.FailoverEvent{
				ClientID: "peer-1",
				GroupID:  group.ID,
				ToExitID: nodeX.ID,
				Reason:   fleet.TriggerInitialAssignment,
				Success:  true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(event.ID).NotTo(BeZero())

			a, err := s.GetAssignment(ctx, "peer-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ActiveExitID).NotTo(BeNil())
			Expect(*a.ActiveExitID).To(Equal(nodeX.ID))

			events, err := s.Events(ctx, store.EventFilter{ClientID: "peer-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("should write no event when the client is unknown", func() {
			_, err := s.RecordFailover(ctx, fleet.FailoverEvent{
				ClientID: "nobody",
				GroupID:  group.ID,
				ToExitID: nodeX.ID,
				Reason:   fleet.TriggerInitialAssignment,
				Success:  true,
			})
			Expect(err).To(MatchError(store.ErrNotFound))

			events, err := s.Events(ctx, store.EventFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("should track the most recent selection per node", func() {
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{
				ClientID: "peer-1", ExitGroupID: &group.ID,
			})).To(Succeed())

			first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
			second := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)

			for _, e := range []fleet.FailoverEvent{
				{ClientID: "peer-1", GroupID: group.ID, ToExitID: nodeX.ID,
					Reason: fleet.TriggerInitialAssignment, TriggeredAt: first, Success: true},
				{ClientID: "peer-1", GroupID: group.ID, ToExitID: nodeY.ID,
					Reason: fleet.TriggerHealthCheckFailed, TriggeredAt: second, Success: true},
			} {
				_, err := s.RecordFailover(ctx, e)
				Expect(err).NotTo(HaveOccurred())
			}

			last, err := s.LastSelections(ctx, group.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(last[nodeX.ID].Equal(first)).To(BeTrue())
			Expect(last[nodeY.ID].Equal(second)).To(BeTrue())
		})

		It("should filter and limit history, newest first", func() {
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{
				ClientID: "peer-1", ExitGroupID: &group.ID,
			})).To(Succeed())
			Expect(s.UpsertAssignment(ctx, fleet.Assignment{
				ClientID: "peer-2", ExitGroupID: &group.ID,
			})).To(Succeed())

			base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
			for i, client := range []string{"peer-1", "peer-2", "peer-1"} {
				_, err := s.RecordFailover(ctx, fleet.FailoverEvent{
					ClientID:    client,
					GroupID:     group.ID,
					ToExitID:    nodeX.ID,
					Reason:      fleet.TriggerInitialAssignment,
					TriggeredAt: base.Add(time.Duration(i) * time.Minute),
					Success:     true,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			byClient, err := s.Events(ctx, store.EventFilter{ClientID: "peer-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(byClient).To(HaveLen(2))
			Expect(byClient[0].TriggeredAt.After(byClient[1].TriggeredAt)).To(BeTrue())

			limited, err := s.Events(ctx, store.EventFilter{GroupID: group.ID, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(2))
		})
	})
})
