package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/zanolabs/escrowd/backend"
	"gitlab.com/zanolabs/escrowd/contractmanager"
	"gitlab.com/zanolabs/escrowd/interfaces"
	"gitlab.com/zanolabs/escrowd/session"
	"gitlab.com/zanolabs/escrowd/wallet"
)

type ApiController struct {
	engine  *contractmanager.Engine
	session *session.Session
	relay   *backend.Relay
	log     interfaces.ILogger
}

type StatusResponse struct {
	HeightApp           uint64  `json:"height_app"`
	HeightMax           uint64  `json:"height_max"`
	DaemonState         int64   `json:"daemon_network_state"`
	ExpirationThreshold int64   `json:"expiration_threshold"`
	SyncProgress        float64 `json:"sync_progress"`
	Wallets             int     `json:"wallets"`
}

type WalletResponse struct {
	WalletID     int64   `json:"wallet_id"`
	Loaded       bool    `json:"loaded"`
	Staking      bool    `json:"staking"`
	Progress     float64 `json:"progress"`
	MinedTotal   uint64  `json:"minied_total"`
	NewContracts int     `json:"new_contracts"`
	Contracts    int     `json:"contracts"`
}

type CommandResponse struct {
	Success bool `json:"success"`
}

func NewApiController(engine *contractmanager.Engine, sess *session.Session, relay *backend.Relay, log interfaces.ILogger) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())

	controller := ApiController{
		engine:  engine,
		session: sess,
		relay:   relay,
		log:     log,
	}

	r.GET("/healthcheck", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.GET("/status", controller.GetStatus)
	r.GET("/wallets", controller.GetWallets)
	r.GET("/wallets/:id/contracts", controller.GetContracts)
	r.GET("/wallets/:id/history", controller.GetHistory)

	r.POST("/contracts", controller.CreateProposal)
	r.POST("/wallets/:id/contracts/:contract_id/accept", controller.AcceptProposal)
	r.POST("/wallets/:id/contracts/:contract_id/release", controller.ReleaseProposal)
	r.POST("/wallets/:id/contracts/:contract_id/request-cancel", controller.RequestCancel)
	r.POST("/wallets/:id/contracts/:contract_id/accept-cancel", controller.AcceptCancel)

	r.POST("/wallets/:id/contracts/:contract_id/acknowledge", controller.Acknowledge)
	r.POST("/wallets/:id/contracts/:contract_id/ignore", controller.IgnoreExpired)
	r.POST("/wallets/:id/contracts/:contract_id/decline-cancel", controller.DeclineCancel)

	return r
}

func (c *ApiController) GetStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, StatusResponse{
		HeightApp:           c.session.HeightApp(),
		HeightMax:           c.session.HeightMax(),
		DaemonState:         c.session.DaemonState(),
		ExpirationThreshold: c.session.ExpirationThreshold(),
		SyncProgress:        c.session.SyncProgress(),
		Wallets:             c.engine.Wallets().Len(),
	})
}

func (c *ApiController) GetWallets(ctx *gin.Context) {
	data := []WalletResponse{}
	for _, w := range c.engine.Wallets().All() {
		data = append(data, WalletResponse{
			WalletID:     w.WalletID,
			Loaded:       w.Loaded(),
			Staking:      w.Staking(),
			Progress:     w.Progress(),
			MinedTotal:   w.MinedTotal(),
			NewContracts: w.NewContractsCount(),
			Contracts:    len(w.ContractsSnapshot()),
		})
	}
	ctx.JSON(http.StatusOK, data)
}

func (c *ApiController) GetContracts(ctx *gin.Context) {
	w, ok := c.wallet(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, w.ContractsSnapshot())
}

func (c *ApiController) GetHistory(ctx *gin.Context) {
	w, ok := c.wallet(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, w.History())
}

func (c *ApiController) CreateProposal(ctx *gin.Context) {
	var p backend.CreateProposalParams
	if err := ctx.ShouldBindJSON(&p); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := c.relay.CreateProposal(ctx.Request.Context(), p)
	c.reply(ctx, ok, err)
}

func (c *ApiController) AcceptProposal(ctx *gin.Context) {
	walletID, contractID, ok := c.contractRef(ctx)
	if !ok {
		return
	}
	success, err := c.relay.AcceptProposal(ctx.Request.Context(), walletID, contractID)
	c.reply(ctx, success, err)
}

func (c *ApiController) ReleaseProposal(ctx *gin.Context) {
	walletID, contractID, ok := c.contractRef(ctx)
	if !ok {
		return
	}
	releaseType := backend.ReleaseNormal
	if ctx.Query("burn") == "true" {
		releaseType = backend.ReleaseBurn
	}
	success, err := c.relay.ReleaseProposal(ctx.Request.Context(), walletID, contractID, releaseType)
	c.reply(ctx, success, err)
}

func (c *ApiController) RequestCancel(ctx *gin.Context) {
	walletID, contractID, ok := c.contractRef(ctx)
	if !ok {
		return
	}
	hours, err := strconv.Atoi(ctx.DefaultQuery("expiration_period", "12"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid expiration_period"})
		return
	}
	success, err := c.relay.RequestCancelContract(ctx.Request.Context(), walletID, contractID, hours)
	c.reply(ctx, success, err)
}

func (c *ApiController) AcceptCancel(ctx *gin.Context) {
	walletID, contractID, ok := c.contractRef(ctx)
	if !ok {
		return
	}
	success, err := c.relay.AcceptCancelContract(ctx.Request.Context(), walletID, contractID)
	c.reply(ctx, success, err)
}

func (c *ApiController) Acknowledge(ctx *gin.Context) {
	c.action(ctx, c.engine.Acknowledge)
}

func (c *ApiController) IgnoreExpired(ctx *gin.Context) {
	c.action(ctx, c.engine.IgnoreExpiredProposal)
}

func (c *ApiController) DeclineCancel(ctx *gin.Context) {
	c.action(ctx, c.engine.DeclineCancelRequest)
}

func (c *ApiController) action(ctx *gin.Context, f func(walletID int64, contractID string) error) {
	walletID, contractID, ok := c.contractRef(ctx)
	if !ok {
		return
	}
	err := f(walletID, contractID)
	switch {
	case errors.Is(err, contractmanager.ErrWalletNotFound), errors.Is(err, contractmanager.ErrContractNotFound):
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		_ = ctx.AbortWithError(http.StatusInternalServerError, err)
	default:
		ctx.Status(http.StatusOK)
	}
}

func (c *ApiController) reply(ctx *gin.Context, success bool, err error) {
	if err != nil {
		c.log.Errorf("daemon command failed: %s", err)
		_ = ctx.AbortWithError(http.StatusBadGateway, err)
		return
	}
	ctx.JSON(http.StatusOK, CommandResponse{Success: success})
}

func (c *ApiController) wallet(ctx *gin.Context) (*wallet.Wallet, bool) {
	walletID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid wallet id"})
		return nil, false
	}
	w, ok := c.engine.Wallets().Get(walletID)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": contractmanager.ErrWalletNotFound.Error()})
		return nil, false
	}
	return w, true
}

func (c *ApiController) contractRef(ctx *gin.Context) (int64, string, bool) {
	walletID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid wallet id"})
		return 0, "", false
	}
	contractID := ctx.Param("contract_id")
	if contractID == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing contract id"})
		return 0, "", false
	}
	return walletID, contractID, true
}
