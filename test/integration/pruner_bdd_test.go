//go:build integration

package integration

import (
	"bytes"
	"context"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/profprune/internal/domain"
	"github.com/eliteGoblin/profprune/internal/infra"
	"github.com/eliteGoblin/profprune/internal/usecase"
	"github.com/eliteGoblin/profprune/test/fixtures"
)

const host = "WS-042"

var _ = Describe("Pruner over a snapshot inventory", func() {
	var (
		tmpDir    string
		tree      *fixtures.FakeProfileTree
		inventory *infra.SnapshotInventory
		sink      *infra.FileLogSink
		store     *infra.EncryptedRunStore
		console   *bytes.Buffer
	)

	newPruner := func(answer string) *usecase.Pruner {
		prompter := infra.NewConsolePrompter(strings.NewReader(answer), console)
		reporter := infra.NewConsoleReporter(console)
		return usecase.NewPruner(inventory, sink, prompter, reporter, store, zap.NewNop())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "profprune-integration-*")
		Expect(err).NotTo(HaveOccurred())

		tree = fixtures.NewFakeProfileTree(tmpDir, host,
			fixtures.FakeProfile{Name: "jdoe", SID: "S-1-5-21-100-200-300-1001", LastUse: "2024-05-01T08:00:00Z"},
			fixtures.FakeProfile{Name: "tech", SID: "S-1-5-21-100-200-300-1002", Loaded: true},
			fixtures.FakeProfile{Name: "olduser", SID: "S-1-5-21-100-200-300-1003", LastUse: "2021-01-04T10:00:00Z"},
			fixtures.FakeProfile{Name: "contractor", SID: "S-1-5-21-100-200-300-1004"},
			fixtures.FakeProfile{Name: "systemprofile", SID: "S-1-5-18"},
		)
		Expect(tree.Create()).To(Succeed())

		inventory = infra.NewSnapshotInventory(tree.SnapshotPath(), nil, zap.NewNop())

		sink, err = infra.NewFileLogSink(tmpDir+"/logs", host, time.Now())
		Expect(err).NotTo(HaveOccurred())

		store, _, err = infra.OpenRunStore(tmpDir + "/data")
		Expect(err).NotTo(HaveOccurred())

		console = &bytes.Buffer{}
	})

	AfterEach(func() {
		sink.Close()
		store.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("a confirmed run", func() {
		It("removes only profiles that are not kept, loaded or system accounts", func() {
			report, err := newPruner("yes\n").Run(context.Background(), usecase.RunRequest{
				Host:      host,
				KeepNames: []string{"JDOE", "ghost"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(tree.Exists("olduser")).To(BeFalse())
			Expect(tree.Exists("contractor")).To(BeFalse())
			Expect(tree.Exists("jdoe")).To(BeTrue())
			Expect(tree.Exists("tech")).To(BeTrue())
			Expect(tree.Exists("systemprofile")).To(BeTrue())

			Expect(report.Removed).To(HaveLen(2))
			Expect(report.Skipped).To(HaveLen(3))
			Expect(report.After).To(HaveLen(3))
			Expect(report.Keep.UnmatchedNames).To(Equal([]string{"ghost"}))
			Expect(report.Warnings).To(HaveLen(1))

			Expect(console.String()).To(ContainSubstring("[y/N]"))
			Expect(console.String()).To(ContainSubstring("warning:"))
		})

		It("writes the audit log and records the run", func() {
			report, err := newPruner("y\n").Run(context.Background(), usecase.RunRequest{
				Host:      host,
				KeepNames: []string{"jdoe"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sink.Close()).To(Succeed())

			data, err := os.ReadFile(sink.Path())
			Expect(err).NotTo(HaveOccurred())
			log := string(data)
			Expect(log).To(ContainSubstring("=== Profiles before removal (5) ==="))
			Expect(log).To(ContainSubstring("=== Removed (2) ==="))
			Expect(log).To(ContainSubstring("=== Profiles after removal (3) ==="))

			run, err := store.GetRun(report.RunID)
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Host).To(Equal(host))
			Expect(run.BeforeCount).To(Equal(5))
			Expect(run.AfterCount).To(Equal(3))
			Expect(run.RemovedCount).To(Equal(2))

			results, err := usecase.DecodeRunResults(*run)
			Expect(err).NotTo(HaveOccurred())
			Expect(results.Removed).To(HaveLen(2))
		})

		It("is idempotent: a second run removes nothing", func() {
			req := usecase.RunRequest{Host: host, KeepNames: []string{"jdoe"}, AssumeYes: true}
			_, err := newPruner("").Run(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())

			report, err := newPruner("").Run(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Removed).To(BeEmpty())
			Expect(report.Before).To(HaveLen(3))
		})
	})

	Describe("a dry run", func() {
		It("plans removals without touching the tree", func() {
			report, err := newPruner("").Run(context.Background(), usecase.RunRequest{Host: host, DryRun: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Plan.ToRemove).To(HaveLen(3))
			Expect(report.Removed).To(BeEmpty())
			Expect(tree.Exists("olduser")).To(BeTrue())
			Expect(tree.Exists("jdoe")).To(BeTrue())
			Expect(console.String()).To(ContainSubstring("Would remove (3)"))

			runs, err := store.ListRuns(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].DryRun).To(BeTrue())
		})
	})

	Describe("a declined confirmation", func() {
		It("returns ErrCancelled and removes nothing", func() {
			_, err := newPruner("n\n").Run(context.Background(), usecase.RunRequest{Host: host})
			Expect(err).To(MatchError(domain.ErrCancelled))

			Expect(tree.Exists("olduser")).To(BeTrue())
			Expect(tree.Exists("contractor")).To(BeTrue())

			runs, err := store.ListRuns(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(BeEmpty())
		})
	})

	Describe("an inventory that cannot be read", func() {
		It("fails before attempting any deletion", func() {
			_, err := newPruner("y\n").Run(context.Background(), usecase.RunRequest{Host: "WS-999"})
			Expect(err).To(MatchError(domain.ErrInventoryUnavailable))
			Expect(tree.Exists("olduser")).To(BeTrue())
		})
	})
})

var _ = Describe("Pruner with a profile outside the profile root", func() {
	var (
		tmpDir string
		tree   *fixtures.FakeProfileTree
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "profprune-integration-*")
		Expect(err).NotTo(HaveOccurred())

		tree = fixtures.NewFakeProfileTree(tmpDir, host,
			fixtures.FakeProfile{Name: "olduser", SID: "S-1-5-21-100-200-300-1003"},
			fixtures.FakeProfile{Name: "escapee", SID: "S-1-5-21-100-200-300-1005", Outside: true},
		)
		Expect(tree.Create()).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("reports the refused deletion as RemovalFailed and continues", func() {
		inventory := infra.NewSnapshotInventory(tree.SnapshotPath(), nil, zap.NewNop())
		sink, err := infra.NewFileLogSink(tmpDir+"/logs", host, time.Now())
		Expect(err).NotTo(HaveOccurred())
		defer sink.Close()

		pruner := usecase.NewPruner(inventory, sink,
			infra.NewConsolePrompter(strings.NewReader(""), GinkgoWriter),
			infra.NewConsoleReporter(GinkgoWriter),
			nil, zap.NewNop())

		report, err := pruner.Run(context.Background(), usecase.RunRequest{Host: host, AssumeYes: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Exists("olduser")).To(BeFalse())
		Expect(tree.Exists("escapee")).To(BeTrue())

		Expect(report.Removed).To(HaveLen(1))
		Expect(report.Skipped).To(HaveLen(1))
		Expect(report.Skipped[0].Reason.Kind).To(Equal(domain.ReasonRemovalFailed))
		Expect(report.Skipped[0].Reason.Detail).To(ContainSubstring("outside profile root"))
		Expect(report.After).To(HaveLen(1))
	})
})

var _ = Describe("Pruner with two snapshot entries sharing a security ID", func() {
	var (
		tmpDir string
		tree   *fixtures.FakeProfileTree
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "profprune-integration-*")
		Expect(err).NotTo(HaveOccurred())

		tree = fixtures.NewFakeProfileTree(tmpDir, host,
			fixtures.FakeProfile{Name: "tech", SID: "S-1-5-21-100-200-300-1010", Loaded: true},
			fixtures.FakeProfile{Name: "olduser", SID: "s-1-5-21-100-200-300-1010"},
		)
		Expect(tree.Create()).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("refuses the inventory and deletes nothing", func() {
		inventory := infra.NewSnapshotInventory(tree.SnapshotPath(), nil, zap.NewNop())
		sink, err := infra.NewFileLogSink(tmpDir+"/logs", host, time.Now())
		Expect(err).NotTo(HaveOccurred())
		defer sink.Close()

		pruner := usecase.NewPruner(inventory, sink,
			infra.NewConsolePrompter(strings.NewReader(""), GinkgoWriter),
			infra.NewConsoleReporter(GinkgoWriter),
			nil, zap.NewNop())

		_, err = pruner.Run(context.Background(), usecase.RunRequest{Host: host, AssumeYes: true})
		Expect(err).To(MatchError(domain.ErrInventoryUnavailable))
		Expect(err.Error()).To(ContainSubstring("duplicate sid"))

		Expect(tree.Exists("tech")).To(BeTrue())
		Expect(tree.Exists("olduser")).To(BeTrue())
	})
})
