package api

import (
	"context"
	"encoding/json"
	"net/url"
)

func idPath(prefix, id string) string {
	return prefix + url.PathEscape(id)
}

func (c *Client) getRaw(ctx context.Context, path string, params map[string]any, opts []CallOption) (json.RawMessage, error) {
	resp, err := c.Get(ctx, path, params, nil, opts...)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// ListCars returns a page of the inventory. page <= 0 fetches the default page.
func (c *Client) ListCars(ctx context.Context, page int, opts ...CallOption) (json.RawMessage, error) {
	var params map[string]any
	if page > 0 {
		params = map[string]any{"page": page}
	}
	return c.getRaw(ctx, "/cars/get-all", params, opts)
}

func (c *Client) GetCar(ctx context.Context, id string, opts ...CallOption) (json.RawMessage, error) {
	return c.getRaw(ctx, idPath("/cars/get/", id), nil, opts)
}

// SearchCars filters the inventory, e.g. {"make": "Audi", "year": 2020}
func (c *Client) SearchCars(ctx context.Context, filter map[string]any, opts ...CallOption) (json.RawMessage, error) {
	return c.getRaw(ctx, "/cars/search", filter, opts)
}

func (c *Client) UpdateCar(ctx context.Context, id string, car any) (json.RawMessage, error) {
	resp, err := c.Put(ctx, idPath("/cars/update/", id), car, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

func (c *Client) DeleteCar(ctx context.Context, id string) error {
	_, err := c.Delete(ctx, idPath("/cars/delete/", id), nil)
	return err
}

func (c *Client) ListBlogs(ctx context.Context, opts ...CallOption) (json.RawMessage, error) {
	return c.getRaw(ctx, "/blogs/get-all", nil, opts)
}

func (c *Client) GetBlog(ctx context.Context, id string, opts ...CallOption) (json.RawMessage, error) {
	return c.getRaw(ctx, idPath("/blogs/get/", id), nil, opts)
}

func (c *Client) ListUsers(ctx context.Context, opts ...CallOption) (json.RawMessage, error) {
	return c.getRaw(ctx, "/users/get-all", nil, opts)
}

// SubmitSellRequest posts a "sell your car" form
func (c *Client) SubmitSellRequest(ctx context.Context, request any) (json.RawMessage, error) {
	resp, err := c.Post(ctx, "/sell-requests/create", request, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}
