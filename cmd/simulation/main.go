package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wealthdesk/exchange-gateway/internal/audit"
	"github.com/wealthdesk/exchange-gateway/internal/auth"
	"github.com/wealthdesk/exchange-gateway/internal/batch"
	"github.com/wealthdesk/exchange-gateway/internal/cache"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/database"
	"github.com/wealthdesk/exchange-gateway/internal/lock"
	"github.com/wealthdesk/exchange-gateway/internal/mandates"
	"github.com/wealthdesk/exchange-gateway/internal/metrics"
	"github.com/wealthdesk/exchange-gateway/internal/orders"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/partner/exchangea"
	"github.com/wealthdesk/exchange-gateway/internal/partner/exchangeb"
	"github.com/wealthdesk/exchange-gateway/internal/payments"
	"github.com/wealthdesk/exchange-gateway/internal/poller"
	"github.com/wealthdesk/exchange-gateway/internal/queue"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/internal/vault"
	"github.com/wealthdesk/exchange-gateway/pkg/middleware"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	simJWTSecret = "simulation-secret"

	// Short enough that the simulation sees orders settle, long enough that
	// the pollers are not hammering the mocks.
	simPollInterval = 3 * time.Second

	// How long to poll each order for a terminal status before giving up.
	statusWait = 30 * time.Second
)

var (
	exchanges = []string{"EXCHANGE_A", "EXCHANGE_B"}
	schemes   = []string{"GF01", "EQ17", "DEBT05", "IDX50", "LIQ02"}
	orderOps  = []string{"purchase", "redemption"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the gateway API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":        {name: "Authentication"},
			"credentials": {name: "Set Credentials"},
			"place":       {name: "Place Order"},
			"get":         {name: "Get Order"},
			"mandate":     {name: "Register Mandate"},
			"payment":     {name: "Initiate Payment"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// do sends an authenticated request and returns the response body.
func (sc *simulationClient) do(method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")
	return resp.StatusCode, respBody, nil
}

// setCredentials stores partner credentials for the demo advisor on one exchange
func (sc *simulationClient) setCredentials(exchange string) error {
	start := time.Now()
	defer func() {
		sc.stats["credentials"].addDuration(time.Since(start))
	}()

	payload := map[string]string{
		"member_id":   "MBR001",
		"login_id":    "demo-login",
		"secret":      "demo-partner-secret",
		"license_key": "0123456789abcdef",
	}
	status, body, err := sc.do("PUT", "/api/v1/credentials/"+exchange, payload)
	if err != nil {
		sc.stats["credentials"].addFailure()
		return err
	}
	if status != http.StatusOK {
		sc.stats["credentials"].addFailure()
		return fmt.Errorf("set credentials failed with status %d: %s", status, string(body))
	}
	return nil
}

// placeOrder submits a new order to the gateway
// Returns the order ID on success
func (sc *simulationClient) placeOrder(operation, exchange, clientID, scheme string, amount float64) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["place"].addDuration(time.Since(start))
	}()

	payload := map[string]any{
		"client_id":   clientID,
		"exchange":    exchange,
		"scheme_code": scheme,
		"amount":      amount,
	}
	status, body, err := sc.do("POST", "/api/v1/orders/"+operation, payload)
	if err != nil {
		sc.stats["place"].addFailure()
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["place"].addFailure()
		return "", fmt.Errorf("place order failed with status %d: %s", status, string(body))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.Data.OrderID == "" {
		return "", fmt.Errorf("no order ID in response: %s", string(body))
	}
	return result.Data.OrderID, nil
}

// getOrder retrieves the current status of an order
func (sc *simulationClient) getOrder(orderID string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	status, body, err := sc.do("GET", "/api/v1/orders/"+orderID, nil)
	if err != nil {
		sc.stats["get"].addFailure()
		return "", err
	}
	if status != http.StatusOK {
		sc.stats["get"].addFailure()
		return "", fmt.Errorf("get order failed with status %d: %s", status, string(body))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return result.Data.Status, nil
}

// registerMandate registers a debit mandate for a client
func (sc *simulationClient) registerMandate(exchange, clientID string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["mandate"].addDuration(time.Since(start))
	}()

	payload := map[string]any{
		"client_id":      clientID,
		"exchange":       exchange,
		"mandate_type":   "E_NACH",
		"amount":         25000.0,
		"account_number": fmt.Sprintf("0043%08d", rand.Intn(100000000)),
		"ifsc_code":      "HDFC0000043",
		"bank_name":      "HDFC Bank",
	}
	status, body, err := sc.do("POST", "/api/v1/mandates", payload)
	if err != nil {
		sc.stats["mandate"].addFailure()
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["mandate"].addFailure()
		return "", fmt.Errorf("register mandate failed with status %d: %s", status, string(body))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			MandateID string `json:"mandate_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return result.Data.MandateID, nil
}

// initiatePayment funds a submitted order over UPI
func (sc *simulationClient) initiatePayment(orderID string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["payment"].addDuration(time.Since(start))
	}()

	payload := map[string]any{
		"payment_mode": "UPI",
		"vpa":          "demo@upi",
	}
	status, body, err := sc.do("POST", "/api/v1/orders/"+orderID+"/payment", payload)
	if err != nil {
		sc.stats["payment"].addFailure()
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["payment"].addFailure()
		return "", fmt.Errorf("initiate payment failed with status %d: %s", status, string(body))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return result.Data.Status, nil
}

// awaitTerminal polls an order until it leaves the QUEUED/SUBMITTED states or
// the wait budget runs out. Returns the last observed status.
func (sc *simulationClient) awaitTerminal(orderID string) string {
	deadline := time.Now().Add(statusWait)
	last := "UNKNOWN"
	for time.Now().Before(deadline) {
		status, err := sc.getOrder(orderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("Failed to get order")
			return last
		}
		last = status
		if status != "QUEUED" && status != "SUBMITTED" {
			return status
		}
		time.Sleep(2 * time.Second)
	}
	return last
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the end-to-end gateway simulation. It starts the gateway
// in-process against mock partner exchanges, authenticates, stores partner
// credentials, then fires concurrent order and mandate traffic and reports
// how submissions fared.
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Store partner credentials for both exchanges
	for _, exchange := range exchanges {
		if err := simClient.setCredentials(exchange); err != nil {
			log.Fatal().Err(err).Str("exchange", exchange).Msg("Failed to set credentials")
		}
		log.Info().Str("exchange", exchange).Msg("Partner credentials stored")
	}

	// Generate random number of orders to process
	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	ordersChan := make(chan string, targetOrders)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			placeOrders(workerID, targetOrders/numWorkers, simClient, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var orderIDs []string
	for orderID := range ordersChan {
		orderIDs = append(orderIDs, orderID)
	}
	log.Info().Int("orders_placed", len(orderIDs)).Msg("All orders placed")

	// Register a couple of mandates alongside the order flow
	mandateCount := 0
	for i := 0; i < 3; i++ {
		exchange := exchanges[rand.Intn(len(exchanges))]
		mandateID, err := simClient.registerMandate(exchange, fmt.Sprintf("CLIENT_%d", i))
		if err != nil {
			log.Error().Err(err).Msg("Failed to register mandate")
			continue
		}
		mandateCount++
		log.Info().Str("mandate_id", mandateID).Str("exchange", exchange).Msg("Mandate registered")
	}

	// Track each order to a terminal status
	stats := struct {
		TotalOrders int
		Statuses    map[string]int
		StartTime   time.Time
	}{
		TotalOrders: len(orderIDs),
		Statuses:    make(map[string]int),
		StartTime:   time.Now(),
	}

	var payable []string
	for _, orderID := range orderIDs {
		status := simClient.awaitTerminal(orderID)
		stats.Statuses[status]++
		log.Info().Str("order_id", orderID).Str("status", status).Msg("Order settled into status")
		if (status == "SUBMITTED" || status == "ACCEPTED" || status == "ALLOTTED") && len(payable) < 5 {
			payable = append(payable, orderID)
		}
	}

	// Fund a handful of the orders that made it to the partner
	paymentCount := 0
	for _, orderID := range payable {
		paymentStatus, err := simClient.initiatePayment(orderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("Failed to initiate payment")
			continue
		}
		paymentCount++
		log.Info().Str("order_id", orderID).Str("payment_status", paymentStatus).Msg("Payment initiated")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 GATEWAY SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Order Statistics
------------------
Total Orders:     %d
Mandates:         %d
Payments:         %d
Duration:         %v

📈 Status Distribution
--------------------
`, stats.TotalOrders, mandateCount, paymentCount, duration.Round(time.Millisecond))

	// Print status distribution with simple ASCII bar chart
	maxStatusCount := 0
	for _, count := range stats.Statuses {
		if count > maxStatusCount {
			maxStatusCount = count
		}
	}
	for status, count := range stats.Statuses {
		barLength := int(float64(count) / float64(maxStatusCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-10s: %s (%d)\n", status, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	simClient.printPerformanceStats()

	log.Info().
		Int("total_orders", stats.TotalOrders).
		Dur("duration", duration).
		Msg("Simulation completed")
}

// placeOrders generates and submits random orders to the API
// Runs as a worker goroutine, sending placed order IDs to ordersChan
func placeOrders(workerID, numOrders int, simClient *simulationClient, ordersChan chan<- string) {
	for i := 0; i < numOrders; i++ {
		operation := orderOps[rand.Intn(len(orderOps))]
		exchange := exchanges[rand.Intn(len(exchanges))]
		scheme := schemes[rand.Intn(len(schemes))]
		clientID := fmt.Sprintf("CLIENT_%d", workerID)
		amount := float64(rand.Intn(9000)+1000) + 0.50

		orderID, err := simClient.placeOrder(operation, exchange, clientID, scheme, amount)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Str("scheme", scheme).
				Msg("Failed to place order")
			continue
		}

		ordersChan <- orderID
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Str("order_id", orderID).
			Str("operation", operation).
			Str("exchange", exchange).
			Str("scheme", scheme).
			Float64("amount", amount).
			Msg("Order placed")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

// startServer wires an in-process gateway against mock partner exchanges so
// the simulation runs with no external dependencies: in-memory queue and
// locks, a shared in-memory SQLite database, and fast reconciliation pollers.
func startServer() error {
	exchangeAURL, err := serveMock("EXCHANGE_A", newMockExchangeA())
	if err != nil {
		return err
	}
	exchangeBURL, err := serveMock("EXCHANGE_B", newMockExchangeB())
	if err != nil {
		return err
	}
	log.Info().Str("exchange_a", exchangeAURL).Str("exchange_b", exchangeBURL).Msg("Mock exchanges listening")

	// Initialize database
	db, err := database.NewDatabase("file:simulation?mode=memory&cache=shared")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	workerCtx := context.Background()

	submitQueue := queue.NewMemory(1024)
	invalidator := cache.NewInvalidator(nil)
	locks := lock.NewCoordinator(lock.NewMemoryStore())

	m := metrics.New(prometheus.NewRegistry())

	auditWriter := audit.NewWriter(db, 256)
	go auditWriter.Start(workerCtx)

	v, err := vault.New("")
	if err != nil {
		return err
	}

	// Partner clients pointed at the mocks
	transportA := partner.NewTransport(string(types.ExchangeA), partner.TransportConfig{
		BaseURL:  exchangeAURL,
		Timeout:  5 * time.Second,
		Audit:    auditWriter,
		Observer: m,
	})
	transportB := partner.NewTransport(string(types.ExchangeB), partner.TransportConfig{
		BaseURL:  exchangeBURL,
		Timeout:  5 * time.Second,
		Audit:    auditWriter,
		Observer: m,
	})
	clients := map[types.Exchange]partner.Client{
		types.ExchangeA: exchangea.NewClient(transportA),
		types.ExchangeB: exchangeb.NewClient(transportB),
	}

	// Initialize services
	authService := auth.NewService(simJWTSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	credentialsService := credentials.NewService(db, v, clients)
	ordersService := orders.NewService(db, submitQueue, credentialsService, clients, invalidator)
	mandatesService := mandates.NewService(db, submitQueue, credentialsService, clients, invalidator)
	paymentsService := payments.NewService(db, ordersService.Database(), credentialsService, clients)

	// Submission worker pool
	orderProcessor := orders.NewProcessor(ordersService)
	mandateProcessor := mandates.NewProcessor(mandatesService)
	pool := queue.NewPool(submitQueue, map[string]queue.Handler{
		queue.KindOrderSubmit:   orderProcessor.Handle,
		queue.KindMandateSubmit: mandateProcessor.Handle,
	}, queue.PoolConfig{
		Concurrency: numWorkers,
		MaxAttempts: 3,
		OnExhausted: func(ctx context.Context, job queue.Job, err error) {
			switch job.Kind {
			case queue.KindOrderSubmit:
				orderProcessor.HandleExhausted(ctx, job, err)
			case queue.KindMandateSubmit:
				mandateProcessor.HandleExhausted(ctx, job, err)
			}
		},
	})
	pool.Start(workerCtx)

	// Reconciliation pollers on a tight interval
	tracker := batch.NewTracker(db)
	for exchange, client := range clients {
		orderPoller := poller.NewOrderPoller(poller.OrderPollerConfig{
			Exchange:    exchange,
			DB:          ordersService.Database(),
			Credentials: credentialsService,
			Client:      client,
			Locks:       locks,
			Tracker:     tracker,
			Cache:       invalidator,
			Metrics:     m,
			Interval:    simPollInterval,
		})
		mandatePoller := poller.NewMandatePoller(poller.MandatePollerConfig{
			Exchange:    exchange,
			Service:     mandatesService,
			Credentials: credentialsService,
			Client:      client,
			Locks:       locks,
			Tracker:     tracker,
			Metrics:     m,
			Interval:    simPollInterval,
		})
		go orderPoller.Run(workerCtx)
		go mandatePoller.Run(workerCtx)
	}

	// Initialize router. Rate limiting stays off so the load phase is not
	// throttled.
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	authHandlers := auth.NewGinHandlers(authService)
	ordersHandlers := orders.NewGinHandlers(ordersService)
	mandatesHandlers := mandates.NewGinHandlers(mandatesService)
	paymentsHandlers := payments.NewGinHandlers(paymentsService)
	credentialsHandlers := credentials.NewGinHandlers(credentialsService)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(simJWTSecret))

		ordersGroup := protected.Group("/orders")
		{
			ordersGroup.POST("/purchase", ordersHandlers.PlaceHandler(types.OrderPurchase))
			ordersGroup.POST("/redemption", ordersHandlers.PlaceHandler(types.OrderRedemption))
			ordersGroup.POST("/switch", ordersHandlers.PlaceHandler(types.OrderSwitch))
			ordersGroup.POST("/systematic", ordersHandlers.PlaceSystematicHandler())
			ordersGroup.GET("", ordersHandlers.ListHandler())
			ordersGroup.GET("/:order_id", ordersHandlers.GetHandler())
			ordersGroup.POST("/:order_id/cancel", ordersHandlers.CancelHandler())
			ordersGroup.POST("/:order_id/payment", paymentsHandlers.InitiateHandler())
			ordersGroup.GET("/:order_id/payment", paymentsHandlers.StatusHandler())
		}

		mandatesGroup := protected.Group("/mandates")
		{
			mandatesGroup.POST("", mandatesHandlers.RegisterHandler())
			mandatesGroup.GET("", mandatesHandlers.ListHandler())
			mandatesGroup.GET("/:mandate_id", mandatesHandlers.GetHandler())
			mandatesGroup.POST("/:mandate_id/refresh", mandatesHandlers.RefreshHandler())
			mandatesGroup.POST("/:mandate_id/cancel", mandatesHandlers.CancelHandler())
		}

		credentialsGroup := protected.Group("/credentials")
		{
			credentialsGroup.PUT("/:exchange", credentialsHandlers.SetHandler())
			credentialsGroup.GET("/:exchange", credentialsHandlers.StatusHandler())
			credentialsGroup.POST("/:exchange/test", credentialsHandlers.TestHandler())
		}
	}

	// Start the server
	return router.Run(":8080")
}
