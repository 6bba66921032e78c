package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dbmanager"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/postgresql"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/schema"
)

// DB_ is the data access interface handed to request handlers. It wraps a scoped connection; the
// managers are separately initialized so each can be wrapped on its own.

type ProductManager interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, apperrors.Error)
	ListProducts(ctx context.Context, f models.ProductFilters) ([]models.Product, int64, apperrors.Error)
	CreateProduct(ctx context.Context, p *models.Product) apperrors.Error
	UpdateProduct(ctx context.Context, id int64, u models.ProductUpdate) apperrors.Error
	DeleteProduct(ctx context.Context, id int64) apperrors.Error
	SearchProducts(ctx context.Context, query string, brandID int64, limit int) ([]models.ProductCandidate, apperrors.Error)

	ListSizeGroups(ctx context.Context, brandID int64) ([]models.SizeGroup, apperrors.Error)
	ListSizes(ctx context.Context, sizeGroupID int64) ([]models.Size, apperrors.Error)
	ListSizesByGroups(ctx context.Context, sizeGroupIDs []int64) (map[int64][]models.Size, apperrors.Error)
	ListSizesForProduct(ctx context.Context, sizeGroupID int64, article, variant string, brandID int64) ([]models.Size, apperrors.Error)
	FindSize(ctx context.Context, brandID int64, groupName, sizeName string) (*models.Size, apperrors.Error)
}

// Tx is a transaction over the statements that must commit together.
type Tx interface {
	LockOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error)
	MatchOrCreateProduct(ctx context.Context, p *models.Product) (int64, bool, apperrors.Error)
	SetProductPrices(ctx context.Context, productID int64, price float64, retail sql.NullFloat64) apperrors.Error
	DeleteOrderProducts(ctx context.Context, orderID int64) (int64, apperrors.Error)
	InsertOrderProducts(ctx context.Context, orderID int64, rows []models.OrderProduct) apperrors.Error
	TouchOrder(ctx context.Context, orderID int64) apperrors.Error
	Commit() error
	Rollback() error
}

type OrderManager interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error)
	ListOrders(ctx context.Context, userID int64) ([]models.Order, apperrors.Error)
	CreateOrder(ctx context.Context, o *models.Order) apperrors.Error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) apperrors.Error
	ListOrderProducts(ctx context.Context, orderID int64) ([]models.OrderProductDetail, apperrors.Error)
	BeginTx(ctx context.Context) (Tx, apperrors.Error)
}

type CatalogManager interface {
	ListCatalogs(ctx context.Context, states []string) ([]models.Catalog, apperrors.Error)
	GetCatalog(ctx context.Context, id int64) (*models.Catalog, apperrors.Error)
	CreateCatalog(ctx context.Context, c *models.Catalog) apperrors.Error
	UpdateCatalog(ctx context.Context, c *models.Catalog) apperrors.Error
	SetCatalogState(ctx context.Context, id int64, from, to string) apperrors.Error
}

type NotificationManager interface {
	CreateNotification(ctx context.Context, n *models.Notification) apperrors.Error
	CreateNotificationForRole(ctx context.Context, role string, n *models.Notification) ([]models.Notification, apperrors.Error)
	ListNotifications(ctx context.Context, page, limit int64) ([]models.Notification, int64, apperrors.Error)
	UnreadCount(ctx context.Context) (int64, apperrors.Error)
	MarkRead(ctx context.Context, id int64) apperrors.Error
	MarkAllRead(ctx context.Context) (int64, apperrors.Error)
}

type ConnectionManager interface {
	// Scope Management
	AddScopes(ctx context.Context, scopes map[string]string) error
	AddScope(ctx context.Context, scope, value string) error
	DropScope(ctx context.Context, scope string) error
	DropAllScopes(ctx context.Context) error

	GetUser(ctx context.Context, id int64) (*models.User, apperrors.Error)

	// Close the connection to the database.
	Close(ctx context.Context)
}

type DB_ interface {
	ProductManager
	OrderManager
	CatalogManager
	NotificationManager
	ConnectionManager
}

const Scope_UserId = postgresql.Scope_UserId

var (
	ErrProductNotFound      = postgresql.ErrProductNotFound
	ErrSizeNotFound         = postgresql.ErrSizeNotFound
	ErrOrderNotFound        = postgresql.ErrOrderNotFound
	ErrCatalogNotFound      = postgresql.ErrCatalogNotFound
	ErrCatalogStateChanged  = postgresql.ErrCatalogStateChanged
	ErrNotificationNotFound = postgresql.ErrNotificationNotFound
	ErrUserNotFound         = postgresql.ErrUserNotFound
)

var configuredScopes = []string{
	Scope_UserId,
}

var (
	poolMu sync.RWMutex
	pool   dbmanager.ScopedDb
)

// Init opens the connection pool. It must be called before Conn.
func Init(ctx context.Context, opts dbmanager.Options) error {
	pg, err := dbmanager.NewScopedDb(ctx, "postgresql", opts, configuredScopes)
	if err != nil {
		return err
	}
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool != nil {
		pool.Close()
	}
	pool = pg
	return nil
}

// OptionsFromConfig maps the [db] config section to pool options.
func OptionsFromConfig(c config.DBConfig) dbmanager.Options {
	timeout, err := time.ParseDuration(c.StatementTimeout)
	if err != nil {
		timeout = 5 * time.Second
	}
	return dbmanager.Options{
		DSN:              c.Dsn(),
		MaxOpenConns:     c.MaxOpenConns,
		StatementTimeout: timeout,
		ConnectRetries:   c.ConnectRetries,
	}
}

// ApplySchema creates missing tables on the initialized pool.
func ApplySchema(ctx context.Context) error {
	poolMu.RLock()
	p := pool
	poolMu.RUnlock()
	if p == nil {
		return errNoPool
	}
	return schema.Apply(ctx, p.DB())
}

func Shutdown() {
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool != nil {
		pool.Close()
		pool = nil
	}
}

var errNoPool = apperrors.New("database pool not initialized")

func Conn(ctx context.Context) (dbmanager.ScopedConn, error) {
	poolMu.RLock()
	p := pool
	poolMu.RUnlock()
	if p == nil {
		return nil, errNoPool
	}
	conn, err := p.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return conn, nil
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "VetrinaDb"

// ConnCtx returns a context carrying a new scoped connection.
func ConnCtx(ctx context.Context) (context.Context, error) {
	conn, err := Conn(ctx)
	if err != nil {
		return ctx, err
	}
	return WithDB(ctx, newVetrinaDb(conn)), nil
}

// WithDB stores d in the context, e.g. a test double.
func WithDB(ctx context.Context, d DB_) context.Context {
	return context.WithValue(ctx, ctxDbKey, d)
}

type vetrinaDb struct {
	ProductManager
	*orderManager
	CatalogManager
	NotificationManager
	ConnectionManager
}

// orderManager adapts the concrete transaction type to the Tx interface.
type orderManager struct {
	orders orderManagerImpl
}

type orderManagerImpl interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error)
	ListOrders(ctx context.Context, userID int64) ([]models.Order, apperrors.Error)
	CreateOrder(ctx context.Context, o *models.Order) apperrors.Error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) apperrors.Error
	ListOrderProducts(ctx context.Context, orderID int64) ([]models.OrderProductDetail, apperrors.Error)
	BeginTx(ctx context.Context) (*postgresql.Tx, apperrors.Error)
}

func (m *orderManager) GetOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error) {
	return m.orders.GetOrder(ctx, orderID)
}

func (m *orderManager) ListOrders(ctx context.Context, userID int64) ([]models.Order, apperrors.Error) {
	return m.orders.ListOrders(ctx, userID)
}

func (m *orderManager) CreateOrder(ctx context.Context, o *models.Order) apperrors.Error {
	return m.orders.CreateOrder(ctx, o)
}

func (m *orderManager) UpdateOrderStatus(ctx context.Context, orderID int64, status string) apperrors.Error {
	return m.orders.UpdateOrderStatus(ctx, orderID, status)
}

func (m *orderManager) ListOrderProducts(ctx context.Context, orderID int64) ([]models.OrderProductDetail, apperrors.Error) {
	return m.orders.ListOrderProducts(ctx, orderID)
}

func (m *orderManager) BeginTx(ctx context.Context) (Tx, apperrors.Error) {
	tx, err := m.orders.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func newVetrinaDb(conn dbmanager.ScopedConn) DB_ {
	m := postgresql.NewVetrinaDb(conn)
	return &vetrinaDb{
		ProductManager:      m.Products,
		orderManager:        &orderManager{orders: m.Orders},
		CatalogManager:      m.Catalogs,
		NotificationManager: m.Notifications,
		ConnectionManager:   m.Connection,
	}
}

// FromContext returns the connection stored in ctx, if any.
func FromContext(ctx context.Context) (DB_, bool) {
	d, ok := ctx.Value(ctxDbKey).(DB_)
	return d, ok
}

func DB(ctx context.Context) DB_ {
	if d, ok := ctx.Value(ctxDbKey).(DB_); ok {
		return d
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}
