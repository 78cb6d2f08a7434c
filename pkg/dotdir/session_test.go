package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-session-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadSession", func() {
		It("returns an empty state when no session file exists", func() {
			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.LastConversations).To(BeEmpty())
			Expect(state.LastConversation("alice")).To(BeZero())
		})

		It("returns error for invalid JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSession(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("tolerates a file without conversations", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(`{}`), 0o600)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.LastConversations).NotTo(BeNil())
		})
	})

	Describe("SaveLastConversation", func() {
		It("remembers the last conversation per user", func() {
			Expect(m.SaveLastConversation("alice", 3, tmpDir)).To(Succeed())
			Expect(m.SaveLastConversation("bob", 7, tmpDir)).To(Succeed())
			Expect(m.SaveLastConversation("alice", 9, tmpDir)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.LastConversation("alice")).To(Equal(int64(9)))
			Expect(state.LastConversation("bob")).To(Equal(int64(7)))
			Expect(state.UpdatedAt).NotTo(BeZero())
		})

		It("stores the session under ~/.tether without an override", func() {
			home := GinkgoT().TempDir()
			m := dotdir.NewManager(dotdir.WithHome(home), dotdir.WithWorkDir(GinkgoT().TempDir()))

			Expect(m.SaveLastConversation("alice", 4, "")).To(Succeed())
			Expect(filepath.Join(home, dotdir.DirName, dotdir.SessionFile)).To(BeARegularFile())
		})

		It("requires a user id", func() {
			Expect(m.SaveLastConversation("", 1, tmpDir)).NotTo(Succeed())
		})
	})

	Describe("ClearLastConversation", func() {
		It("forgets only the given user", func() {
			Expect(m.SaveLastConversation("alice", 3, tmpDir)).To(Succeed())
			Expect(m.SaveLastConversation("bob", 7, tmpDir)).To(Succeed())

			Expect(m.ClearLastConversation("alice", tmpDir)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.LastConversation("alice")).To(BeZero())
			Expect(state.LastConversation("bob")).To(Equal(int64(7)))
		})

		It("is a no-op without a session file", func() {
			Expect(m.ClearLastConversation("alice", tmpDir)).To(Succeed())
			_, err := os.Stat(filepath.Join(tmpDir, "session.json"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})
})
