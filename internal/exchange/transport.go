package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Transport — общий HTTP-слой для всех юзерских клиентов: один лимитер на
// процесс, чтобы параллельные юзеры суммарно не пробили рейт-лимит биржи.
type Transport struct {
	httpc   *http.Client
	limiter *rate.Limiter
}

type TransportOptions struct {
	Timeout        time.Duration
	RequestsPerSec int
}

func NewTransport(opts TransportOptions) *Transport {
	if opts.Timeout == 0 {
		opts.Timeout = 12 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	return &Transport{
		httpc: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
	}
}

// Do — одна попытка, только rate limit. Для side-effecting вызовов (ордера).
func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.httpc.Do(req.WithContext(ctx))
}

// DoRetry — GET-вызовы с экспоненциальным бэкоффом. Ретраим сетевые ошибки,
// 429 и 5xx; ордера сюда не ходят.
func (t *Transport) DoRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		resp, err = t.httpc.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}
