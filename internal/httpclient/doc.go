// Package httpclient is the outbound HTTP stack used for page downloads and
// uploads.
//
// Built on go-resty/resty over a go-retryablehttp transport:
//   - Rate limiting per client (golang.org/x/time/rate)
//   - One circuit breaker per scope (download, upload) and target host
//   - Retries off by default; the last response is always surfaced
//
// Example Usage:
//
//	client := httpclient.New(httpclient.DefaultOptions(), logger)
//	resp, err := client.Execute(ctx, httpclient.ScopeDownload, target, func(r *resty.Request) (*resty.Response, error) {
//		return r.Get(target)
//	})
package httpclient
