package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Keoroanthony/orders-api/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing one")
)

// Store is the gorm-backed record store for customers, orders and principals.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces the clock used to stamp Order.Time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(conn *gorm.DB, opts ...Option) *Store {
	s := &Store{db: conn, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying connection, mostly for tests and health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Customers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := codeAvailable(tx, c.Code, 0); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return translate(err, "create customer")
		}
		return nil
	})
}

func (s *Store) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("customer %d", id))
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// UpdateCustomer writes every mutable field of c, including a nil phone.
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := codeAvailable(tx, c.Code, c.ID); err != nil {
			return err
		}

		res := tx.Model(&models.Customer{ID: c.ID}).
			Select("name", "code", "phone_number").
			Updates(c)
		if res.Error != nil {
			return translate(res.Error, fmt.Sprintf("update customer %d", c.ID))
		}
		if res.RowsAffected == 0 {
			return s.existsOrNotFound(tx, &models.Customer{}, c.ID, "customer")
		}
		return nil
	})
}

// DeleteCustomer removes the customer and all of its orders in one transaction.
func (s *Store) DeleteCustomer(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ?", id).Delete(&models.Order{}).Error; err != nil {
			return fmt.Errorf("delete orders of customer %d: %w", id, err)
		}

		res := tx.Delete(&models.Customer{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete customer %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("customer %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func codeAvailable(tx *gorm.DB, code string, selfID uint) error {
	var count int64
	q := tx.Model(&models.Customer{}).Where("code = ?", code)
	if selfID != 0 {
		q = q.Where("id <> ?", selfID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check customer code: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("customer code %q: %w", code, ErrConflict)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Orders
// ─────────────────────────────────────────────────────────────────────────────

// CreateOrder stamps Time from the store clock, ignoring any caller value, and
// fails with ErrNotFound when the customer does not exist.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.existsOrNotFound(tx, &models.Customer{}, o.CustomerID, "customer"); err != nil {
			return err
		}

		o.ID = 0
		o.Time = s.now().UTC()
		if err := tx.Create(o).Error; err != nil {
			return translate(err, "create order")
		}
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("order %d", id))
	}
	return &o, nil
}

// ListOrders returns the most recent orders first.
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "time"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrder writes customer, item and amount. Time is never written.
func (s *Store) UpdateOrder(ctx context.Context, o *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.existsOrNotFound(tx, &models.Order{}, o.ID, "order"); err != nil {
			return err
		}
		if err := s.existsOrNotFound(tx, &models.Customer{}, o.CustomerID, "customer"); err != nil {
			return err
		}

		err := tx.Model(&models.Order{ID: o.ID}).
			Select("customer_id", "item", "amount").
			Updates(map[string]any{
				"customer_id": o.CustomerID,
				"item":        o.Item,
				"amount":      o.Amount,
			}).Error
		if err != nil {
			return translate(err, fmt.Sprintf("update order %d", o.ID))
		}

		return tx.First(o, o.ID).Error
	})
}

func (s *Store) DeleteOrder(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Order{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Principals
// ─────────────────────────────────────────────────────────────────────────────

// GetOrCreatePrincipal finds a principal by email, creating it from p when
// absent. Names on an existing row are left as they are.
func (s *Store) GetOrCreatePrincipal(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if p.Email == "" {
		return nil, errors.New("principal email is required")
	}

	var out models.Principal
	err := s.db.WithContext(ctx).
		Where(models.Principal{Email: p.Email}).
		Attrs(models.Principal{
			Name:       p.Name,
			GivenName:  p.GivenName,
			FamilyName: p.FamilyName,
			Subject:    p.Subject,
		}).
		FirstOrCreate(&out).Error
	if err != nil {
		return nil, translate(err, "get or create principal")
	}
	return &out, nil
}

func (s *Store) GetPrincipal(ctx context.Context, id uint) (*models.Principal, error) {
	var p models.Principal
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("principal %d", id))
	}
	return &p, nil
}

// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) existsOrNotFound(tx *gorm.DB, model any, id uint, name string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("look up %s %d: %w", name, id, err)
	}
	if count == 0 {
		return fmt.Errorf("%s %d: %w", name, id, ErrNotFound)
	}
	return nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
