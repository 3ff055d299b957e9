//go:build unit

package environment

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeRows yields (field, value) pairs, or scanErr on the first Scan when set.
type fakeRows struct {
	pairs   [][2]string
	scanErr error
	err     error
	next    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.next >= len(r.pairs) {
		return false
	}
	r.next++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	pair := r.pairs[r.next-1]
	*dest[0].(*string) = pair[0]
	*dest[1].(*string) = pair[1]
	return nil
}

type fakeQuerier struct {
	rows     pgx.Rows
	err      error
	sql      string
	args     []any
	deadline bool
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	q.args = args
	_, q.deadline = ctx.Deadline()
	return q.rows, q.err
}

var _ = Describe("PostgresStore", func() {
	It("should query the configured table by key", func() {
		db := &fakeQuerier{rows: &fakeRows{pairs: [][2]string{{"greeting", "hello"}, {"server.port", "8080"}}}}
		store := NewPostgresStore(db, "app_properties", time.Second)

		properties, err := store.Fetch("app-dev")
		Expect(err).NotTo(HaveOccurred())
		Expect(properties).To(Equal(map[string]string{"greeting": "hello", "server.port": "8080"}))
		Expect(db.sql).To(Equal(`SELECT field, value FROM "app_properties" WHERE key = $1 ORDER BY field`))
		Expect(db.args).To(Equal([]any{"app-dev"}))
		Expect(db.deadline).To(BeTrue())
	})

	It("should quote hostile table names", func() {
		store := NewPostgresStore(&fakeQuerier{}, `p"; DROP TABLE x; --`, time.Second)
		Expect(store.query).To(ContainSubstring(`FROM "p""; DROP TABLE x; --" WHERE`))
	})

	It("should return an empty mapping when no row matches", func() {
		properties, err := NewPostgresStore(&fakeQuerier{rows: &fakeRows{}}, "properties", time.Second).Fetch("app")
		Expect(err).NotTo(HaveOccurred())
		Expect(properties).NotTo(BeNil())
		Expect(properties).To(BeEmpty())
	})

	It("should report query failures as unavailable", func() {
		db := &fakeQuerier{err: errors.New("failed to connect")}

		_, err := NewPostgresStore(db, "properties", time.Second).Fetch("app")
		Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
	})

	It("should report server errors while reading as unavailable", func() {
		db := &fakeQuerier{rows: &fakeRows{err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}}

		_, err := NewPostgresStore(db, "properties", time.Second).Fetch("app")
		Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
	})

	It("should report a connection dropped while reading as unavailable", func() {
		dropped := &net.OpError{Op: "read", Net: "tcp", Err: io.ErrUnexpectedEOF}
		db := &fakeQuerier{rows: &fakeRows{pairs: [][2]string{{"a", "b"}}, err: dropped}}

		_, err := NewPostgresStore(db, "properties", time.Second).Fetch("app")
		Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
		Expect(errors.Is(err, ErrMalformedResponse)).To(BeFalse())
	})

	It("should report rows that cannot be scanned as malformed", func() {
		db := &fakeQuerier{rows: &fakeRows{
			pairs:   [][2]string{{"a", "b"}},
			scanErr: errors.New("cannot scan NULL into *string"),
		}}

		_, err := NewPostgresStore(db, "properties", time.Second).Fetch("app")
		Expect(errors.Is(err, ErrMalformedResponse)).To(BeTrue())
	})
})
