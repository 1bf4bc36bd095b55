//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/daemon"
	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
	"github.com/eliteGoblin/focusd/shieldmon/test/fixtures"
)

var _ = Describe("Morning/Evening schedule", func() {
	var (
		ctx    context.Context
		clock  *fixtures.ManualClock
		store  *infra.SQLStore
		engine *usecase.Engine
		fire   func(kind usecase.BoundaryKind, activity string)
	)

	shield := func() domain.ShieldState {
		state, err := engine.Service.ShieldState(ctx)
		Expect(err).NotTo(HaveOccurred())
		return state
	}

	events := func() []string {
		history, err := engine.Service.EventHistory(ctx)
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, len(history))
		for i, e := range history {
			names[i] = e.Event
		}
		return names
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = fixtures.NewManualClock(fixtures.At(7, 0))

		var err error
		store, err = infra.NewSQLStore(infra.SQLStoreOptions{DataDir: GinkgoT().TempDir(), Driver: infra.DriverSQLite})
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		activities := infra.NewActivityCenter(store, clock, infra.DefaultMinimumInterval, logger)
		engine = usecase.NewEngine(usecase.EngineDeps{
			Store:      store,
			Surface:    infra.NewStoreSurface(store),
			Activities: activities,
			Authorizer: infra.NewAuthorizer(store, testPlatform{}, clock, logger),
			Clock:      clock,
			Logger:     logger,
		}, usecase.DefaultEngineConfig())

		invoker := daemon.NewDirectInvoker(engine.Reactor, logger)
		fire = func(kind usecase.BoundaryKind, activity string) {
			Expect(invoker.Invoke(ctx, usecase.BoundaryEvent{Kind: kind, Activity: activity})).To(Succeed())
		}

		status, err := engine.Service.RequestAuthorization(ctx, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(domain.AuthApproved))

		Expect(engine.Service.SaveSelection(ctx, fixtures.GamesSelection())).To(Succeed())
		result, err := engine.Service.SetSchedules(ctx, fixtures.MorningEvening())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Registered).To(Equal(2))
	})

	AfterEach(func() {
		engine.Override.Stop()
		Expect(store.Close()).To(Succeed())
	})

	It("should leave the shield down before the first window", func() {
		Expect(shield().IsEmpty()).To(BeTrue())
	})

	It("should shield during the morning window and release at its end", func() {
		clock.Set(fixtures.At(8, 0))
		fire(usecase.BoundaryStart, "Morning")
		Expect(shield().Targets()).To(Equal(fixtures.GamesSelection().Normalize()))

		clock.Set(fixtures.At(9, 0))
		fire(usecase.BoundaryEnd, "Morning")
		Expect(shield().IsEmpty()).To(BeTrue())

		Expect(events()[:2]).To(Equal([]string{domain.EventIntervalEnd, domain.EventIntervalStart}))
		ended, ok, err := engine.Service.ReadAndClearScheduleEndedFlag(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(ended).To(Equal("Morning"))
	})

	DescribeTable("should restore the shield after a temporary unlock",
		func(monitorFirst bool) {
			clock.Set(fixtures.At(8, 0))
			fire(usecase.BoundaryStart, "Morning")

			clock.Set(fixtures.At(8, 30))
			_, err := engine.Service.RequestTemporaryUnlock(ctx, 5*time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(shield().IsEmpty()).To(BeTrue())

			clock.Set(fixtures.At(8, 35))
			expire := func() {
				_, err := engine.Override.ExpireIfDue(ctx)
				Expect(err).NotTo(HaveOccurred())
			}
			if monitorFirst {
				fire(usecase.BoundaryEnd, domain.OverrideActivityName)
				expire()
			} else {
				expire()
				fire(usecase.BoundaryEnd, domain.OverrideActivityName)
			}

			Expect(shield().IsEmpty()).To(BeFalse())
			o, err := engine.Service.Override(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Active).To(BeFalse())
			Expect(events()).To(ContainElement(domain.EventOverrideEnded))
		},
		Entry("monitor path first", true),
		Entry("controller path first", false),
	)

	It("should reject a zero-length window without registering it", func() {
		result, err := engine.Service.SetSchedules(ctx, []domain.Schedule{fixtures.Window("Bad", 9, 0, 9, 0)})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Rejected).To(HaveLen(1))

		activities, err := engine.Service.Activities(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(activities).To(BeEmpty())
		Expect(events()).To(ContainElement(domain.EventScheduleRejected))
	})

	It("should cancel everything when the selection is cleared", func() {
		clock.Set(fixtures.At(20, 30))
		fire(usecase.BoundaryStart, "Evening")
		Expect(shield().IsEmpty()).To(BeFalse())

		Expect(engine.Service.ClearSelection(ctx)).To(Succeed())
		Expect(shield().IsEmpty()).To(BeTrue())
		schedules, err := engine.Service.Schedules(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(schedules).To(BeEmpty())
		activities, err := engine.Service.Activities(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(activities).To(BeEmpty())
	})

	It("should persist across store handles", func() {
		clock.Set(fixtures.At(8, 0))
		fire(usecase.BoundaryStart, "Morning")

		reopened, err := infra.NewSQLStore(infra.SQLStoreOptions{DataDir: filepath.Dir(store.Path()), Driver: infra.DriverSQLite})
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		state, err := infra.NewStoreSurface(reopened).Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Source).NotTo(BeEmpty())
		Expect(state.IsEmpty()).To(BeFalse())
	})
})
