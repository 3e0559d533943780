package gen

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/apigen/internal/spec"
)

const shop = `openapi: 3.0.3
info: { title: Shop, version: "1.2" }
servers:
  - url: https://shop.example.com/api
paths:
  /orders:
    get:
      tags: [orders]
      operationId: OrdersController_list
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: { type: array, items: { $ref: "#/components/schemas/Order" } }
    post:
      tags: [orders]
      operationId: list
      responses:
        "201": { description: created }
  /users:
    get:
      operationId: listUsers
      responses:
        "200": { description: ok }
  /shared:
    $ref: "#/components/pathItems/Shared"
  /orders/{id}:
    delete:
      tags: [orders]
      parameters:
        - { name: id, in: path, required: true, schema: { type: string } }
      responses:
        "204": { description: gone }
components:
  schemas:
    Status: { type: string, enum: [open, closed] }
    Order:
      type: object
      required: [id]
      properties:
        id: { type: string }
        status: { $ref: "#/components/schemas/Status" }
    order-item: { type: string }
    order_item: { type: number }
`

func TestGenerate(t *testing.T) {
	doc, err := spec.Parse([]byte(shop))
	require.NoError(t, err)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts.Headers = map[string]string{"X-Api-Key": "k"}

	out, err := Generate(doc, opts)
	require.NoError(t, err)

	assert.Equal(t, "ApiClient", out.ClassName)
	assert.True(t, out.Namespacing)
	assert.Equal(t, "Shop", out.Title)
	assert.Equal(t, "1.2", out.Version)
	assert.Equal(t, "https://shop.example.com/api", out.BaseURL)
	assert.Equal(t, map[string]string{"X-Api-Key": "k"}, out.Headers)

	var types []string
	for _, d := range out.Types {
		types = append(types, d.DeclName())
	}
	assert.Equal(t, []string{"Order", "Status", "order_item"}, types)
	assert.IsType(t, &EnumDecl{}, out.Types[1])
	assert.Equal(t, "string", out.Types[2].(*AliasDecl).Type.String(), "first schema wins the identifier")

	require.Len(t, out.Namespaces, 2)
	assert.Equal(t, "orders", out.Namespaces[0].Name)
	assert.Equal(t, "general", out.Namespaces[1].Name)

	var names []string
	for _, r := range out.Routes() {
		names = append(names, r.Name.String())
	}
	assert.Equal(t, []string{"orders.list", "orders.deleteOrdersId", "general.listUsers"}, names)
	assert.Equal(t, "Order[]", out.Routes()[0].Response.String())

	logs := buf.String()
	assert.Contains(t, logs, "duplicate operation name")
	assert.Contains(t, logs, "path item reference is not supported")
	assert.Contains(t, logs, "collides after normalization")
}

func TestGenerate_NameResolver(t *testing.T) {
	doc, err := spec.Parse([]byte(shop))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.ClassName = "Shop"
	opts.NameResolver = func(op OperationRef, p OpName) (OpName, bool) {
		if op.Method == spec.POST {
			return OpName{Namespace: p.Namespace, Function: "create"}, true
		}
		return p, false
	}
	out, err := Generate(doc, opts)
	require.NoError(t, err)

	assert.Equal(t, "Shop", out.ClassName)
	require.Len(t, out.Namespaces[0].Routes, 3)
	assert.Equal(t, "create", out.Namespaces[0].Routes[1].Name.Function)
}

func TestGenerate_AbortsOnMappingFailure(t *testing.T) {
	doc, err := spec.Parse([]byte(`
openapi: 3.1.0
components:
  schemas:
    Broken: { $ref: "#/components/parameters/Nope/schema" }
`))
	require.NoError(t, err)

	_, err = Generate(doc, DefaultOptions())
	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "Broken", gerr.Schema)
}
