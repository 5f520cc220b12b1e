package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ubiq/go-ubiq/v3/log"
	"github.com/ubiq/go-ubiq/v3/rpc"
)

type Config struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
	// Operator serves the mutating stake operations and the admin namespace
	// on POST /v1/. Only enable it behind a trusted gateway.
	Operator bool `json:"operator"`
}

type ApiServer struct {
	handlers *stakeService
	cfg      *Config
	logger   log.Logger
}

func NewApiServer(backend Backend, events EventLog, cfg *Config, logger log.Logger) *ApiServer {

	s := &ApiServer{
		handlers: &stakeService{backend: backend, events: events},
		cfg:      cfg,
		logger:   logger,
	}

	return s
}

// Router builds the HTTP handler: a JSON-RPC endpoint on POST /v1/ and REST
// routes under GET /v1/ translated into the same JSON-RPC calls.
func (a *ApiServer) Router() (*gin.Engine, error) {

	rpcServer := rpc.NewServer()

	if err := rpcServer.RegisterName("stake", a.handlers); err != nil {
		return nil, err
	}

	if a.cfg.Operator {
		if err := rpcServer.RegisterName("operator", &operatorService{backend: a.handlers.backend}); err != nil {
			return nil, err
		}
		a.logger.Warn("operator namespace enabled")
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	v1 := router.Group("v1")

	v1.Use(jsonLoggerMiddleware(a.logger.New("api", "v1")))

	{
		v1.POST("/", jsonParserMiddleware(), rpcHandler(rpcServer))
		v1.GET("/*path", convertRequest(), convertResponse(), rpcHandler(rpcServer))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router, nil
}

func (a *ApiServer) Start() error {

	router, err := a.Router()
	if err != nil {
		return err
	}

	go func() {
		if err := router.Run(":" + a.cfg.Port); err != nil {
			a.logger.Error("Error: couldn't serve api", "port", a.cfg.Port, "err", err)
		}
	}()

	a.logger.Info("api listening", "port", a.cfg.Port)

	return nil
}

func rpcHandler(server *rpc.Server) gin.HandlerFunc {
	return func(context *gin.Context) {
		server.ServeHTTP(context.Writer, context.Request)
	}
}
