// Package catalog answers whether a product id exists, either from the local
// product repository or from a remote product service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Checker reports whether a product exists.
type Checker interface {
	Exists(ctx context.Context, productID string) (bool, error)
}

// Local checks the product repository of this service.
type Local struct {
	products repository.ProductRepository
}

func NewLocal(products repository.ProductRepository) *Local {
	return &Local{products: products}
}

func (c *Local) Exists(ctx context.Context, productID string) (bool, error) {
	_, err := c.products.GetByID(ctx, productID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("look up product %s: %w", productID, err)
	}
}

type getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Remote asks a product service at baseURL, through a circuit breaker.
type Remote struct {
	client  getter
	baseURL string
}

const serviceName = "catalog"

func NewRemote(client *httpclient.CircuitBreakerClient, baseURL string) *Remote {
	return &Remote{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Remote) Exists(ctx context.Context, productID string) (bool, error) {
	resp, err := c.client.Get(ctx, c.baseURL+"/api/v1/products/"+url.PathEscape(productID))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, apperrors.Unavailable("product catalog is unavailable", err)
		}
		return false, fmt.Errorf("query catalog for %s: %w", productID, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var product struct {
			ID string `json:"id"`
		}
		if err := httpclient.DecodeData(resp, serviceName, &product); err != nil {
			return false, err
		}
		return product.ID != "", nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return false, nil
	default:
		return false, httpclient.ParseResponseError(resp, serviceName)
	}
}
