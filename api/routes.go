package api

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	json "github.com/json-iterator/go"
	"github.com/ubiq/go-ubiq/v3/log"
)

const maxRequestBody = 1024 * 1024

// restRoutes maps GET paths onto stake_ JSON-RPC calls. Path segments after
// the route name become positional params.
var restRoutes = map[*regexp.Regexp]func(re *regexp.Regexp, url string) (io.Reader, int64, string){

	regexp.MustCompile(`^/v1/(?:status)$`):   jsonhttphelper("stake_status"),
	regexp.MustCompile(`^/v1/(?:required)$`): jsonhttphelper("stake_minRequiredDeposit"),

	regexp.MustCompile(`^/v1/(?:account)/(?P<params>([^/]*))$`): jsonhttphelper("stake_accountSnapshot"),
	regexp.MustCompile(`^/v1/(?:active)/(?P<params>([^/]*))$`):  jsonhttphelper("stake_isActive"),
	regexp.MustCompile(`^/v1/(?:balance)/(?P<params>([^/]*))$`): jsonhttphelper("stake_balance"),

	regexp.MustCompile(`^/v1/(?:events)/(?P<params>([^/]*))$`):          jsonhttphelper("stake_latestEvents"),
	regexp.MustCompile(`^/v1/(?:accountevents)/(?P<params>(.*)/(.*))$`): jsonhttphelper("stake_accountEvents"),
}

func jsonhttphelper(method string) func(*regexp.Regexp, string) (io.Reader, int64, string) {
	return func(re *regexp.Regexp, url string) (io.Reader, int64, string) {
		var (
			expanded []byte
			fields   [][]byte
			req      struct {
				Id      int           `json:"id"`
				JsonRpc string        `json:"jsonrpc"`
				Method  string        `json:"method"`
				Params  []interface{} `json:"params"`
			}
		)

		template := "${params}"

		for _, submatches := range re.FindAllStringSubmatchIndex(url, -1) {
			expanded = re.ExpandString(expanded, template, url, submatches)
		}

		fields = bytes.FieldsFunc(expanded, func(c rune) bool { return !unicode.IsLetter(c) && !unicode.IsNumber(c) })

		req.Id = 1
		req.JsonRpc = "2.0"
		req.Method = method
		req.Params = make([]interface{}, len(fields))

		for k, v := range fields {
			num, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				log.Trace("Param is not number, setting as string", "method", method, "value", string(v))
				req.Params[k] = string(v)
			} else {
				req.Params[k] = num
			}
		}

		result, err := json.Marshal(req)
		if err != nil {
			log.Error("Error: couldn't build rpc request", "method", method, "err", err)
		}

		return bytes.NewReader(result), int64(len(result)), method
	}
}

// ConvertJSONHTTPReq builds the JSON-RPC body for a REST path. ok is false
// when no route matches.
func ConvertJSONHTTPReq(r *http.Request) (body io.ReadCloser, length int64, method string, ok bool) {

	for k, handler := range restRoutes {
		if k.MatchString(r.URL.Path) {
			res, l, m := handler(k, r.URL.Path)
			return io.NopCloser(res), l, m, true
		}
	}

	return nil, 0, "", false
}

func ParseJsonRequest(r *http.Request) (json.RawMessage, []json.RawMessage, io.ReadCloser) {

	var (
		req struct {
			Method json.RawMessage   `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
	)

	b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		log.Error("Util: couldn't write request body to buffer", "err", err)
	}

	if err = json.Unmarshal(b, &req); err != nil {
		log.Debug("Error: couldn't unmarshal body", "err", err)
	}

	return req.Method, req.Params, io.NopCloser(bytes.NewReader(b))
}

func convertRequest() gin.HandlerFunc {
	return func(context *gin.Context) {
		newReader, length, method, ok := ConvertJSONHTTPReq(context.Request)
		if !ok {
			context.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		context.Request.Method = http.MethodPost
		context.Request.Body = newReader
		context.Request.ContentLength = length
		context.Request.Header.Set("Content-Length", strconv.FormatInt(length, 10))
		context.Request.Header.Set("Content-Type", "application/json")

		context.Set("method", method)
	}
}

func convertResponse() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Writer = convertResponseWriter{ResponseWriter: context.Writer}
	}
}

// convertResponseWriter unwraps the JSON-RPC envelope so REST clients get
// the bare result, or {"error": ...} with a 400.
type convertResponseWriter struct {
	gin.ResponseWriter
}

func (r convertResponseWriter) Write(b []byte) (int, error) {

	var (
		res struct {
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
	)

	if err := json.Unmarshal(b, &res); err != nil {
		log.Error("Error: couldn't unmarshal response body", "err", err)
		return r.ResponseWriter.Write(b)
	}

	if res.Error != nil {
		out, _ := json.Marshal(map[string]string{"error": res.Error.Message})
		r.ResponseWriter.WriteHeader(http.StatusBadRequest)
		return r.ResponseWriter.Write(out)
	}

	if len(res.Result) == 0 {
		res.Result = []byte("null")
	}

	return r.ResponseWriter.Write(res.Result)
}

func jsonParserMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		method, params, newReader := ParseJsonRequest(context.Request)

		context.Request.Body = newReader
		context.Set("method", string(method))
		context.Set("params", len(params))
	}
}

func jsonLoggerMiddleware(logger log.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()

		context.Next()

		ctx := []interface{}{
			"path", context.Request.URL.Path,
			"status", context.Writer.Status(),
			"method", context.Request.Method,
			"latency", time.Since(start),
			"from", context.ClientIP(),
			"agent", context.Request.UserAgent(),
		}

		if method, ok := context.Get("method"); ok {
			ctx = append(ctx, "rpcMethod", method)
		}
		if params, ok := context.Get("params"); ok {
			ctx = append(ctx, "rpcParams", params)
		}

		logger.Info("received http request", ctx...)
	}
}
