package github_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/davarch/star-backup/internal/domain"
	"go.uber.org/zap"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphqlResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

const listsQuery = `query($login: String!, $after: String) {
  user(login: $login) {
    lists(first: 100, after: $after) {
      nodes { id name slug }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const listItemsQuery = `query($id: ID!, $after: String) {
  node(id: $id) {
    ... on UserList {
      items(first: 100, after: $after) {
        nodes {
          __typename
          ... on Repository { nameWithOwner url diskUsage }
        }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

type userList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type listsData struct {
	User *struct {
		Lists struct {
			Nodes    []userList `json:"nodes"`
			PageInfo pageInfo   `json:"pageInfo"`
		} `json:"lists"`
	} `json:"user"`
}

type listItem struct {
	Typename      string `json:"__typename"`
	NameWithOwner string `json:"nameWithOwner"`
	URL           string `json:"url"`
	DiskUsage     int64  `json:"diskUsage"`
}

type listItemsData struct {
	Node *struct {
		Items struct {
			Nodes    []listItem `json:"nodes"`
			PageInfo pageInfo   `json:"pageInfo"`
		} `json:"items"`
	} `json:"node"`
}

func (c *Client) listItems(ctx context.Context, username, listName string) ([]domain.RepoDescriptor, error) {
	list, err := c.findList(ctx, username, listName)
	if err != nil {
		return nil, err
	}
	c.log.Debug("star list", zap.String("name", list.Name), zap.String("slug", list.Slug))

	var out []domain.RepoDescriptor
	var after any
	for {
		resp, err := doGraphQL[listItemsData](ctx, c, graphqlRequest{
			Query:     listItemsQuery,
			Variables: map[string]any{"id": list.ID, "after": after},
		})
		if err != nil {
			return nil, withOp("list items", err)
		}
		if resp.Data.Node == nil {
			return nil, &domain.APIError{Op: "list items", Err: fmt.Errorf("%w: %q", domain.ErrListNotFound, listName)}
		}

		items := resp.Data.Node.Items
		for _, it := range items.Nodes {
			if it.Typename != "Repository" {
				continue
			}
			out = append(out, domain.RepoDescriptor{
				Name:     it.NameWithOwner,
				CloneURL: strings.TrimSuffix(it.URL, "/") + ".git",
				SizeKB:   it.DiskUsage,
			})
		}
		if !items.PageInfo.HasNextPage {
			break
		}
		after = items.PageInfo.EndCursor
	}
	return out, nil
}

// findList matches listName against list names case-insensitively, or exactly
// against slugs.
func (c *Client) findList(ctx context.Context, username, listName string) (userList, error) {
	var after any
	for {
		resp, err := doGraphQL[listsData](ctx, c, graphqlRequest{
			Query:     listsQuery,
			Variables: map[string]any{"login": username, "after": after},
		})
		if err != nil {
			return userList{}, withOp("lists", err)
		}
		if resp.Data.User == nil {
			return userList{}, &domain.APIError{Op: "lists", Err: fmt.Errorf("%w: user %q", domain.ErrListNotFound, username)}
		}

		lists := resp.Data.User.Lists
		for _, l := range lists.Nodes {
			if strings.EqualFold(l.Name, listName) || l.Slug == listName {
				return l, nil
			}
		}
		if !lists.PageInfo.HasNextPage {
			break
		}
		after = lists.PageInfo.EndCursor
	}
	return userList{}, &domain.APIError{Op: "lists", Err: fmt.Errorf("%w: %q", domain.ErrListNotFound, listName)}
}

func withOp(op string, err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		apiErr.Op = op
		return apiErr
	}
	return err
}

func graphqlEndpoint(base *url.URL) (*url.URL, error) {
	if base == nil {
		return nil, errors.New("graphql: base url is nil")
	}

	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	// api.github.com/ -> /graphql, GHES host/api/v3/ -> /api/graphql
	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/api/v3") {
		u.Path = strings.TrimSuffix(path, "/v3") + "/graphql"
		return &u, nil
	}

	u.Path = path + "/graphql"
	return &u, nil
}

// doGraphQL posts req through the same authenticated transport as the REST
// client. Transport, status and GraphQL-level errors come back as
// *domain.APIError.
func doGraphQL[T any](ctx context.Context, c *Client, req graphqlRequest) (graphqlResponse[T], error) {
	var zero graphqlResponse[T]

	endpoint, err := graphqlEndpoint(c.gh.BaseURL)
	if err != nil {
		return zero, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("graphql: marshal request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("graphql: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")

	hresp, err := c.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &domain.APIError{Err: err}
	}
	defer func() { _ = hresp.Body.Close() }()

	switch {
	case hresp.StatusCode == http.StatusUnauthorized:
		return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: domain.ErrAPIAuth}
	case hresp.StatusCode == http.StatusForbidden, hresp.StatusCode == http.StatusTooManyRequests:
		if hresp.Header.Get("X-RateLimit-Remaining") == "0" || hresp.StatusCode == http.StatusTooManyRequests {
			return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: domain.ErrRateLimited}
		}
		return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: domain.ErrAPIAuth}
	case hresp.StatusCode < 200 || hresp.StatusCode >= 300:
		return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: fmt.Errorf("graphql: %s", hresp.Status)}
	}

	var out graphqlResponse[T]
	if err := json.NewDecoder(hresp.Body).Decode(&out); err != nil {
		return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: fmt.Errorf("graphql: decode response: %w", err)}
	}

	if len(out.Errors) > 0 {
		e := out.Errors[0]
		switch e.Type {
		case "RATE_LIMITED":
			return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: fmt.Errorf("%w: %s", domain.ErrRateLimited, e.Message)}
		case "NOT_FOUND":
			return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: fmt.Errorf("%w: %s", domain.ErrListNotFound, e.Message)}
		}
		return zero, &domain.APIError{StatusCode: hresp.StatusCode, Err: fmt.Errorf("graphql: %s", e.Message)}
	}

	return out, nil
}
