package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/predicate"
	"carmarket-search/internal/search/sortpage"
)

const listingColumns = `l.id, l.title, COALESCE(l.description, ''), l.price, l.status, l.is_active,
	l.is_featured, l.view_count, COALESCE(l.location, ''), COALESCE(l.city, ''),
	COALESCE(l.state, ''), COALESCE(l.country, ''), l.created_at, l.seller_id,
	COALESCE(l.primary_image, ''), c.make, c.model, c.year, COALESCE(c.body_type, ''),
	COALESCE(c.fuel_type, ''), COALESCE(c.transmission, ''), c.mileage,
	COALESCE(c.color, ''), COALESCE(c.condition, ''), c.features`

const listingJoin = `FROM listings l JOIN car_details c ON c.listing_id = l.id`

// PostgresExecutor compiles predicates into a parameterized WHERE clause shared
// by the count and the windowed fetch.
type PostgresExecutor struct {
	db *sql.DB
}

func NewPostgresExecutor(db *sql.DB) *PostgresExecutor {
	return &PostgresExecutor{db: db}
}

func (e *PostgresExecutor) Backend() string { return "postgres" }

func (e *PostgresExecutor) Execute(ctx context.Context, preds []predicate.Predicate, sort sortpage.Sort, page sortpage.Page) (*Result, error) {
	where, args := CompileSQL(preds)

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", listingJoin, where)

	fetchArgs := append(append([]interface{}{}, args...), page.Limit, page.Offset())
	fetchQuery := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY %s %s, l.id ASC LIMIT $%d OFFSET $%d",
		listingColumns, listingJoin, where, qualified(sort.Field), sort.Order, len(args)+1, len(args)+2)

	var (
		total int64
		rows  []models.Listing
	)

	// count and fetch may observe different snapshots; that skew is accepted
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.db.QueryRowContext(gctx, countQuery, args...).Scan(&total); err != nil {
			return classifySQLError(ctx, models.QueryTypeListingCount, err)
		}
		return nil
	})
	g.Go(func() error {
		found, err := e.fetch(gctx, fetchQuery, fetchArgs)
		if err != nil {
			return classifySQLError(ctx, models.QueryTypeListingSearch, err)
		}
		rows = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []models.Listing{}
	}
	return &Result{Rows: rows, Total: total}, nil
}

func (e *PostgresExecutor) fetch(ctx context.Context, query string, args []interface{}) ([]models.Listing, error) {
	rs, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []models.Listing
	for rs.Next() {
		l, err := scanListing(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rs.Err()
}

// FindByID returns only public listings; anything else is LISTING_NOT_FOUND.
func (e *PostgresExecutor) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewListingNotFoundError(id)
	}

	where, args := CompileSQL(predicate.Mandatory())
	args = append(args, id)
	query := fmt.Sprintf("SELECT %s %s WHERE %s AND l.id = $%d", listingColumns, listingJoin, where, len(args))

	l, err := scanListing(e.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewListingNotFoundError(id)
		}
		return nil, classifySQLError(ctx, models.QueryTypeListingByID, err)
	}
	return &l, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(s rowScanner) (models.Listing, error) {
	var (
		l        models.Listing
		status   string
		features pq.StringArray
	)
	err := s.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &status, &l.IsActive,
		&l.IsFeatured, &l.ViewCount, &l.Location, &l.City,
		&l.State, &l.Country, &l.CreatedAt, &l.SellerID,
		&l.PrimaryImage, &l.CarDetail.Make, &l.CarDetail.Model, &l.CarDetail.Year, &l.CarDetail.BodyType,
		&l.CarDetail.FuelType, &l.CarDetail.Transmission, &l.CarDetail.Mileage,
		&l.CarDetail.Color, &l.CarDetail.Condition, &features,
	)
	if err != nil {
		return models.Listing{}, err
	}
	l.Status = models.ListingStatus(status)
	l.CarDetail.Features = []string(features)
	return l, nil
}

// CompileSQL renders preds as a conjunction with $n placeholders.
func CompileSQL(preds []predicate.Predicate) (string, []interface{}) {
	c := &sqlCompiler{}
	clauses := make([]string, 0, len(preds))
	for _, p := range preds {
		clauses = append(clauses, c.compile(p))
	}
	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), c.args
}

type sqlCompiler struct {
	args []interface{}
}

func (c *sqlCompiler) bind(v interface{}) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *sqlCompiler) compile(p predicate.Predicate) string {
	switch v := p.(type) {
	case predicate.Equals:
		if s, ok := v.Value.(string); ok {
			return fmt.Sprintf("LOWER(%s) = %s", qualified(v.Field), c.bind(strings.ToLower(s)))
		}
		return fmt.Sprintf("%s = %s", qualified(v.Field), c.bind(v.Value))
	case predicate.Contains:
		return fmt.Sprintf("LOWER(%s) LIKE %s", qualified(v.Field), c.bind("%"+escapeLike(strings.ToLower(v.Value))+"%"))
	case predicate.RangeMin:
		return fmt.Sprintf("%s >= %s", qualified(v.Field), c.bind(v.Value))
	case predicate.RangeMax:
		return fmt.Sprintf("%s <= %s", qualified(v.Field), c.bind(v.Value))
	case predicate.Or:
		parts := make([]string, len(v.Predicates))
		for i, child := range v.Predicates {
			parts[i] = c.compile(child)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	default:
		// MatchNone and anything unrecognized
		return "FALSE"
	}
}

func qualified(f predicate.Field) string {
	if f.Relation == predicate.RelationCar {
		return "c." + f.Column
	}
	return "l." + f.Column
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func classifySQLError(ctx context.Context, queryType models.QueryType, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError(string(queryType))
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) || stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return errors.NewStorageUnavailableError("postgres", err)
	}
	return errors.NewQueryExecutionFailedError(string(queryType), err)
}
