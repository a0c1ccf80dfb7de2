package selector_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
	"github.com/angeloszaimis/exit-failover/internal/selector"
)

func TestSelector(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Selector Suite")
}

func ms(v float64) *float64 { return &v }

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

var _ = Describe("PrioritySelector", func() {
	var sel selector.Selector

	BeforeEach(func() {
		sel = selector.NewPrioritySelector()
	})

	It("should pick the smallest priority value", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 1, Priority: 5},
			{NodeID: 2, Priority: 2},
			{NodeID: 3, Priority: 8},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(2)))
	})

	It("should break priority ties by smallest node id", func() {
		candidates := []selector.Candidate{
			{NodeID: 7, Priority: 5},
			{NodeID: 3, Priority: 2},
			{NodeID: 9, Priority: 2},
		}

		for i := 0; i < 10; i++ {
			id, ok := sel.SelectExit(candidates)
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(int64(3)))
		}
	})

	It("should report no candidate for an empty set", func() {
		_, ok := sel.SelectExit(nil)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("LatencySelector", func() {
	var sel selector.Selector

	BeforeEach(func() {
		sel = selector.NewLatencySelector()
	})

	It("should pick the smallest measured latency", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 1, LatencyMs: ms(80)},
			{NodeID: 2, LatencyMs: ms(15)},
			{NodeID: 3, LatencyMs: ms(40)},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(2)))
	})

	It("should order unmeasured candidates after all measured ones", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 1},
			{NodeID: 2, LatencyMs: ms(300)},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(2)))
	})

	It("should fall back to an unmeasured candidate when nothing is measured", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 4},
			{NodeID: 2},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(2)))
	})

	It("should break latency ties by smallest node id", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 8, LatencyMs: ms(20)},
			{NodeID: 5, LatencyMs: ms(20)},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(5)))
	})
})

var _ = Describe("RoundRobinSelector", func() {
	var sel selector.Selector

	BeforeEach(func() {
		sel = selector.NewRoundRobinSelector()
	})

	It("should pick the least recently selected candidate", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 1, LastSelected: at("2026-08-01T10:00:00Z")},
			{NodeID: 2, LastSelected: at("2026-08-01T09:00:00Z")},
			{NodeID: 3, LastSelected: at("2026-08-01T11:00:00Z")},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(2)))
	})

	It("should treat never-selected as older than any timestamp", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 1, LastSelected: at("2020-01-01T00:00:00Z")},
			{NodeID: 2},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(2)))
	})

	It("should break timestamp ties by smallest node id", func() {
		id, ok := sel.SelectExit([]selector.Candidate{
			{NodeID: 6, LastSelected: at("2026-08-01T10:00:00Z")},
			{NodeID: 4, LastSelected: at("2026-08-01T10:00:00Z")},
		})
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(4)))
	})
})

// Demonstrate Go table-driven testing best practice using Ginkgo's DescribeTable
var _ = Describe("Table-Driven Selector Tests", func() {
	DescribeTable("all strategies map to a selector",
		func(strategy fleet.Strategy) {
			Expect(selector.ForStrategy(strategy)).NotTo(BeNil())
		},
		Entry("priority", fleet.StrategyPriority),
		Entry("round_robin", fleet.StrategyRoundRobin),
		Entry("latency", fleet.StrategyLatency),
	)

	DescribeTable("all strategies report no candidate on an empty set",
		func(strategy fleet.Strategy) {
			_, ok := selector.ForStrategy(strategy).SelectExit(nil)
			Expect(ok).To(BeFalse())
		},
		Entry("priority", fleet.StrategyPriority),
		Entry("round_robin", fleet.StrategyRoundRobin),
		Entry("latency", fleet.StrategyLatency),
	)

	DescribeTable("all strategies pick the sole candidate",
		func(strategy fleet.Strategy) {
			id, ok := selector.ForStrategy(strategy).SelectExit([]selector.Candidate{
				{NodeID: 42, Priority: 1},
			})
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(int64(42)))
		},
		Entry("priority", fleet.StrategyPriority),
		Entry("round_robin", fleet.StrategyRoundRobin),
		Entry("latency", fleet.StrategyLatency),
	)
})
