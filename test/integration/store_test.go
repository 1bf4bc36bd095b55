//go:build integration

package integration

import (
	"context"
	"encoding/binary"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
)

var _ = Describe("SQL shared store", func() {
	var (
		ctx     context.Context
		dataDir string
		first   *infra.SQLStore
		second  *infra.SQLStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		dataDir = GinkgoT().TempDir()

		var err error
		// two handles on one file stand in for two processes
		first, err = infra.NewSQLStore(infra.SQLStoreOptions{DataDir: dataDir, Driver: infra.DriverSQLite})
		Expect(err).NotTo(HaveOccurred())
		second, err = infra.NewSQLStore(infra.SQLStoreOptions{DataDir: dataDir, Driver: infra.DriverSQLite})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(first.Close()).To(Succeed())
		Expect(second.Close()).To(Succeed())
	})

	Describe("cross-handle visibility", func() {
		It("should show a write from one handle to the other", func() {
			Expect(first.Put(ctx, "k", []byte("v1"))).To(Succeed())

			got, err := second.Get(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]byte("v1")))
		})

		It("should bump the revision on every write", func() {
			rev0, err := second.Revision(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(rev0).To(BeZero())

			Expect(first.Put(ctx, "k", []byte("a"))).To(Succeed())
			rev1, err := second.Revision(ctx, "k")
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Put(ctx, "k", []byte("a"))).To(Succeed())
			rev2, err := second.Revision(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(rev2).To(BeNumerically(">", rev1))
		})
	})

	Describe("Update", func() {
		It("should serialise read-modify-write across handles", func() {
			const perWriter = 25
			increment := func(s *infra.SQLStore) {
				defer GinkgoRecover()
				for i := 0; i < perWriter; i++ {
					err := s.Update(ctx, "counter", func(cur []byte, found bool) ([]byte, error) {
						var n uint64
						if found {
							n = binary.BigEndian.Uint64(cur)
						}
						out := make([]byte, 8)
						binary.BigEndian.PutUint64(out, n+1)
						return out, nil
					})
					Expect(err).NotTo(HaveOccurred())
				}
			}

			var wg sync.WaitGroup
			for _, s := range []*infra.SQLStore{first, second, first, second} {
				wg.Add(1)
				go func(s *infra.SQLStore) {
					defer wg.Done()
					increment(s)
				}(s)
			}
			wg.Wait()

			raw, err := first.Get(ctx, "counter")
			Expect(err).NotTo(HaveOccurred())
			Expect(binary.BigEndian.Uint64(raw)).To(Equal(uint64(4 * perWriter)))
		})
	})

	Describe("Take", func() {
		It("should hand a flag to exactly one reader", func() {
			Expect(first.Put(ctx, domain.KeyFlagNavigate, []byte("x"))).To(Succeed())

			var mu sync.Mutex
			taken := 0
			var wg sync.WaitGroup
			for _, s := range []*infra.SQLStore{first, second} {
				wg.Add(1)
				go func(s *infra.SQLStore) {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := s.Take(ctx, domain.KeyFlagNavigate)
					if err == nil {
						mu.Lock()
						taken++
						mu.Unlock()
						return
					}
					Expect(err).To(MatchError(domain.ErrNotFound))
				}(s)
			}
			wg.Wait()
			Expect(taken).To(Equal(1))
		})
	})
})
