package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		home string
		work string
	)

	BeforeEach(func() {
		var err error
		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		home, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		work, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	newManager := func() *dotdir.Manager {
		return dotdir.NewManager(dotdir.WithHome(home), dotdir.WithWorkDir(work))
	}

	Describe("Target", func() {
		It("creates and returns the override directory", func() {
			dir := filepath.Join(work, "state")
			result, err := newManager().Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))
			Expect(dir).To(BeADirectory())
		})

		It("prefers the override over a local .tether directory", func() {
			Expect(os.Mkdir(filepath.Join(work, dotdir.DirName), 0o755)).To(Succeed())

			override := filepath.Join(work, "override")
			result, err := newManager().Target(override)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(override))
		})

		It("uses the .tether directory of the working directory when present", func() {
			local := filepath.Join(work, dotdir.DirName)
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			Expect(os.Mkdir(filepath.Join(home, dotdir.DirName), 0o755)).To(Succeed())

			result, err := newManager().Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("ignores a .tether file that is not a directory", func() {
			Expect(os.WriteFile(filepath.Join(work, dotdir.DirName), nil, 0o600)).To(Succeed())

			result, err := newManager().Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, dotdir.DirName)))
		})

		It("falls back to ~/.tether and creates it", func() {
			result, err := newManager().Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, dotdir.DirName)))
			Expect(result).To(BeADirectory())
		})
	})

	Describe("Path", func() {
		It("joins the file name onto the resolved directory", func() {
			path, err := newManager().Path("tether.db", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(home, dotdir.DirName, "tether.db")))
		})

		It("resolves the session file", func() {
			dir := filepath.Join(work, "state")
			path, err := newManager().SessionPath(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(dir, dotdir.SessionFile)))
		})
	})
})
