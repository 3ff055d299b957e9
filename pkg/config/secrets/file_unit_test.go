//go:build unit

package secrets

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FileSecretLoader", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "redis_password"), []byte("  s3cret\n"), 0o600)).To(Succeed())
	})

	It("should read and trim the secret file", func() {
		loader, err := NewFileSecretLoader(dir)
		Expect(err).NotTo(HaveOccurred())

		value, err := loader.Resolve("redis_password")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("s3cret"))
	})

	It("should reject traversal and absolute keys", func() {
		loader, err := NewFileSecretLoader(dir)
		Expect(err).NotTo(HaveOccurred())

		_, err = loader.Resolve("../etc/passwd")
		Expect(err).To(MatchError(ContainSubstring("path traversal")))

		_, err = loader.Resolve("/etc/passwd")
		Expect(err).To(MatchError(ContainSubstring("absolute paths not allowed")))

		_, err = loader.Resolve("")
		Expect(err).To(HaveOccurred())
	})

	It("should report missing secrets", func() {
		loader, err := NewFileSecretLoader(dir)
		Expect(err).NotTo(HaveOccurred())

		_, err = loader.Resolve("absent")
		Expect(err).To(MatchError("secret not found"))
	})

	Context("FileSecretConfig", func() {
		It("should require an existing directory", func() {
			Expect(FileSecretConfig{}.Validate()).NotTo(Succeed())
			Expect(FileSecretConfig{SecretsDir: filepath.Join(dir, "nope")}.Validate()).To(MatchError(ContainSubstring("does not exist")))
			Expect(FileSecretConfig{SecretsDir: filepath.Join(dir, "redis_password")}.Validate()).To(MatchError(ContainSubstring("is not a directory")))
			Expect(FileSecretConfig{SecretsDir: dir}.Validate()).To(Succeed())
		})

		It("should create a loader", func() {
			loader, err := FileSecretConfig{SecretsDir: dir}.CreateClient()
			Expect(err).NotTo(HaveOccurred())
			Expect(loader.Name()).To(Equal("File"))
		})
	})
})
