// Package journal persists submissions, position changes and PnL snapshots
// to Postgres. The journal is strictly an observer: the engine publishes to
// the bus and never waits on the database.
package journal

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"main/internal/bus"
	"main/internal/pnl"
)

const (
	defaultHost      = "localhost"
	defaultPort      = 5432
	defaultSSLMode   = "disable"
	defaultQueueSize = 1024
)

// Option defines the journal database connection.
type Option struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	QueueSize  int
	Config     *gorm.Config
}

// SubmitRecord is one order submission attempt, successful or not.
type SubmitRecord struct {
	ID     uint `gorm:"primaryKey"`
	Status string
	Symbol string `gorm:"index"`
	Side   string
	Qty    int64
	Price  float64
	Detail string
	At     time.Time `gorm:"index"`
}

func (SubmitRecord) TableName() string { return "submits" }

// PositionRecord is one position mutation.
type PositionRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Symbol      string `gorm:"index"`
	Qty         int64
	AvgPrice    float64
	PendingBuy  int64
	PendingSell int64
	At          time.Time `gorm:"index"`
}

func (PositionRecord) TableName() string { return "position_changes" }

// SnapshotRecord is one full PnL ledger snapshot, stored as JSON.
type SnapshotRecord struct {
	ID          uint `gorm:"primaryKey"`
	Cash        float64
	RealizedNet float64
	Payload     []byte    `gorm:"type:jsonb"`
	At          time.Time `gorm:"index"`
}

func (SnapshotRecord) TableName() string { return "pnl_snapshots" }

// Journal writes records from a bounded queue on a single background
// goroutine. A nil *Journal is a valid no-op sink.
type Journal struct {
	db    *gorm.DB
	queue chan any
	once  sync.Once
	wg    sync.WaitGroup
}

// Open connects, migrates the journal tables and starts the writer.
func Open(opt Option) (*Journal, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), opt.gormConfig())
	if err != nil {
		return nil, errors.Wrap(err, "open journal db")
	}
	if err := db.AutoMigrate(&SubmitRecord{}, &PositionRecord{}, &SnapshotRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate journal tables")
	}

	size := opt.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	j := &Journal{db: db, queue: make(chan any, size)}
	j.wg.Add(1)
	go j.writeLoop()
	return j, nil
}

// Handle converts a bus event into a journal record. Safe to register on the
// bus even when the journal is disabled.
func (j *Journal) Handle(e bus.Event) {
	if j == nil {
		return
	}
	switch e.Kind {
	case bus.KindSubmit:
		if e.Submit == nil {
			return
		}
		j.enqueue(&SubmitRecord{
			Status: e.Submit.Status.String(),
			Symbol: e.Submit.Symbol,
			Side:   e.Submit.Side.String(),
			Qty:    e.Submit.Qty,
			Price:  e.Submit.Price,
			Detail: e.Submit.Detail,
			At:     e.Submit.Ts,
		})
	case bus.KindPositionChanged:
		if e.Position == nil {
			return
		}
		j.enqueue(&PositionRecord{
			Symbol:      e.Position.Symbol,
			Qty:         e.Position.Qty,
			AvgPrice:    e.Position.AvgPrice,
			PendingBuy:  e.Position.PendingBuy,
			PendingSell: e.Position.PendingSell,
			At:          time.Now(),
		})
	case bus.KindPnLSnapshot:
		snap, ok := e.Snapshot.(pnl.Snapshot)
		if !ok {
			return
		}
		payload, err := sonic.ConfigFastest.Marshal(snap)
		if err != nil {
			logs.Errorf("journal: marshal snapshot, err: %+v", err)
			return
		}
		j.enqueue(&SnapshotRecord{
			Cash:        snap.Cash,
			RealizedNet: snap.RealizedNet,
			Payload:     payload,
			At:          time.Now(),
		})
	}
}

func (j *Journal) enqueue(rec any) {
	select {
	case j.queue <- rec:
	default:
		logs.Warnf("journal: queue full, dropping %T", rec)
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for rec := range j.queue {
		if err := j.db.Create(rec).Error; err != nil {
			logs.Errorf("journal: insert %T, err: %+v", rec, err)
		}
	}
}

// Close drains pending records and closes the pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.once.Do(func() { close(j.queue) })
	j.wg.Wait()

	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt Option) gormConfig() *gorm.Config {
	if opt.Config != nil {
		return opt.Config
	}
	return &gorm.Config{}
}

func (opt Option) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPort
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}
