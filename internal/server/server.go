package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const maxBodyBytes = 1 << 20

type ProfileReader interface {
	GetProfile(ctx context.Context, wallet string) (*model.WhaleProfile, error)
}

type StatsReader interface {
	GetStats(ctx context.Context, wallet string) (*model.WhaleStats, error)
}

type NameResolver interface {
	WalletName(ctx context.Context, wallet string) string
}

// Options collaborators of the HTTP surface; nil readers disable their routes
type Options struct {
	Addr     string
	Trades   repo.TradeRawRepo
	Profiles ProfileReader
	Stats    StatsReader
	Names    NameResolver
	Pub      queue.Publisher
	// TradeQueue where ingested trades are published
	TradeQueue string
	// PublishDirect publishes ingested trades; off when the database source already polls trades_raw
	PublishDirect bool
	// Ready reports startup completion for /health, nil means always ready
	Ready func() bool
}

type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
}

func New(opts Options) *Server {
	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/ingest/trade", s.ingestTrade)
	r.Get("/whales/{wallet}", s.whale)

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		logger.Info("🌐 http server listening", logger.String("addr", s.opts.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ http server stopped", logger.FieldErr(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil && !s.opts.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestResponse struct {
	TradeID   string `json:"trade_id"`
	Inserted  bool   `json:"inserted"`
	Published bool   `json:"published"`
}

// ingestTrade validates one TradeIngested, stores it in trades_raw and publishes it
func (s *Server) ingestTrade(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	var buf json.RawMessage
	if err := json.NewDecoder(body).Decode(&buf); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	trade, err := common.DecodeEvent[common.TradeIngested](buf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	resp := ingestResponse{TradeID: trade.TradeID, Inserted: true}
	if s.opts.Trades != nil {
		resp.Inserted, err = s.opts.Trades.Insert(ctx, &model.TradeRaw{
			TradeID:   trade.TradeID,
			MarketID:  trade.MarketID,
			Wallet:    trade.Wallet,
			Side:      trade.Side,
			Amount:    trade.Amount,
			Price:     trade.Price,
			Timestamp: trade.Timestamp.UTC(),
		})
		if err != nil {
			logger.Error("❌ store ingested trade failed", logger.FieldTradeID(trade.TradeID), logger.FieldErr(err))
			writeError(w, http.StatusInternalServerError, errors.New("store trade failed"))
			return
		}
	}

	if resp.Inserted && s.opts.PublishDirect && s.opts.Pub != nil {
		if err := queue.PublishEvent(ctx, s.opts.Pub, s.opts.TradeQueue, trade.Wallet, trade); err != nil {
			logger.Error("❌ publish ingested trade failed", logger.FieldTradeID(trade.TradeID), logger.FieldErr(err))
			writeError(w, http.StatusServiceUnavailable, errors.New("publish trade failed"))
			return
		}
		resp.Published = true
	}

	status := http.StatusAccepted
	if !resp.Inserted {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

type whaleResponse struct {
	Wallet         string     `json:"wallet"`
	DisplayName    string     `json:"display_name"`
	TotalVolume    string     `json:"total_volume"`
	TotalTrades    int64      `json:"total_trades"`
	RealizedPnl    string     `json:"realized_pnl"`
	Wins           int64      `json:"wins"`
	Losses         int64      `json:"losses"`
	WinRate        float64    `json:"win_rate"`
	FirstSeenAt    time.Time  `json:"first_seen_at"`
	LastSeenAt     time.Time  `json:"last_seen_at"`
	WhaleScore     *int       `json:"whale_score,omitempty"`
	StatsUpdatedAt *time.Time `json:"stats_updated_at,omitempty"`
}

func (s *Server) whale(w http.ResponseWriter, r *http.Request) {
	if s.opts.Profiles == nil {
		writeError(w, http.StatusNotFound, errors.New("profiles unavailable"))
		return
	}
	ctx := r.Context()
	wallet := chi.URLParam(r, "wallet")

	profile, err := s.opts.Profiles.GetProfile(ctx, wallet)
	if err != nil {
		logger.Error("❌ load profile failed", logger.FieldWallet(wallet), logger.FieldErr(err))
		writeError(w, http.StatusInternalServerError, errors.New("load profile failed"))
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, errors.Errorf("unknown wallet %s", wallet))
		return
	}

	resp := whaleResponse{
		Wallet:      profile.Wallet,
		DisplayName: utils.ShortWallet(profile.Wallet),
		TotalVolume: profile.TotalVolume.String(),
		TotalTrades: profile.TotalTrades,
		RealizedPnl: profile.RealizedPnl.String(),
		Wins:        profile.Wins,
		Losses:      profile.Losses,
		WinRate:     profile.WinRate(),
		FirstSeenAt: profile.FirstSeenAt,
		LastSeenAt:  profile.LastSeenAt,
	}
	if s.opts.Names != nil {
		if name := s.opts.Names.WalletName(ctx, wallet); name != "" {
			resp.DisplayName = name
		}
	}
	if s.opts.Stats != nil {
		stats, err := s.opts.Stats.GetStats(ctx, wallet)
		if err != nil {
			logger.Warn("⚠️ load stats failed", logger.FieldWallet(wallet), logger.FieldErr(err))
		} else if stats != nil {
			resp.WhaleScore = &stats.WhaleScore
			resp.StatsUpdatedAt = &stats.UpdatedAt
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			return
		}
		logger.Debug("🌐 http request",
			logger.FieldMethod(r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.FieldCost(time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
