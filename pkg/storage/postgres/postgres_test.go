package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/storage/postgres"
	testutils "github.com/papercomputeco/tether/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("TETHER_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("TETHER_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = testutils.DescribeDriver("postgres", func() storage.Driver {
	ctx := context.Background()

	driver, err := postgres.NewDriver(ctx, connStr())
	Expect(err).NotTo(HaveOccurred())

	// Clean all tables before each test for isolation.
	err = driver.Driver.Exec(ctx, "TRUNCATE memories, messages, conversations RESTART IDENTITY CASCADE", []any{}, nil)
	Expect(err).NotTo(HaveOccurred())

	return driver
})
