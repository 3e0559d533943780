package printer

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/apigen/internal/gen"
	"github.com/mark3labs/apigen/internal/spec"
)

var blanks = regexp.MustCompile(`[ \t]+`)

// squash collapses gofmt alignment so assertions can match single spaces.
func squash(src []byte) string {
	return blanks.ReplaceAllString(string(src), " ")
}

func render(t *testing.T, out *gen.Output) string {
	t.Helper()
	src, err := Print(out, Options{})
	require.NoError(t, err, string(src))
	return squash(src)
}

const petstore = `openapi: 3.0.3
info: { title: Petstore, version: "1.0" }
servers:
  - url: https://petstore.example.com/v1
paths:
  /pets:
    get:
      tags: [pets]
      operationId: listPets
      summary: List all pets.
      parameters:
        - { name: limit, in: query, schema: { type: integer } }
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: { type: array, items: { $ref: "#/components/schemas/Pet" } }
  /pets/{petId}:
    delete:
      tags: [pets]
      operationId: deletePet
      deprecated: true
      parameters:
        - { name: petId, in: path, required: true, schema: { type: string } }
      responses:
        "204": { description: gone }
components:
  schemas:
    Status: { type: string, enum: [available, sold] }
    Pet:
      type: object
      required: [id, name]
      properties:
        id: { type: integer }
        name: { type: string, description: Display name. }
        status: { $ref: "#/components/schemas/Status" }
        tags: { type: array, items: { type: string } }
`

func TestPrint_Namespaced(t *testing.T) {
	doc, err := spec.Parse([]byte(petstore))
	require.NoError(t, err)
	opts := gen.DefaultOptions()
	opts.Headers = map[string]string{"X-Client": "apigen"}
	out, err := gen.Generate(doc, opts)
	require.NoError(t, err)

	src := render(t, out)
	assert.True(t, strings.HasPrefix(src, "// Code generated by apigen. DO NOT EDIT.\n// Source: Petstore 1.0\n"))
	assert.Contains(t, src, "package client\n")
	assert.Contains(t, src, `const DefaultBaseURL = "https://petstore.example.com/v1"`)
	assert.Contains(t, src, "type ApiClient struct {\n *apiclient.Client\n\n Pets *ApiClientPets\n}")
	assert.Contains(t, src, "apiclient.WithBaseURL(DefaultBaseURL),")
	assert.Contains(t, src, `"X-Client": "apigen",`)
	assert.Contains(t, src, "Pets: &ApiClientPets{client: c},")
	assert.NotContains(t, src, "WithParseDates")

	assert.Contains(t, src, "// ListPets calls GET /pets.\n//\n// List all pets.\n")
	assert.Contains(t, src, "func (api *ApiClientPets) ListPets(ctx context.Context, search PetsListPetsSearch) ([]Pet, error) {")
	assert.Contains(t, src, `return apiclient.Fetch[[]Pet](ctx, api.client, "get", "/pets", apiclient.Request{Search: search})`)
	assert.Contains(t, src, "type PetsListPetsSearch struct {\n Limit *float64 `json:\"limit,omitempty\"`\n}")

	assert.Contains(t, src, "// Deprecated:")
	assert.Contains(t, src, "func (api *ApiClientPets) DeletePet(ctx context.Context, petId string) error {")
	assert.Contains(t, src, `_, err := api.client.Do(ctx, "delete", "/pets/"+apiclient.PathParam(petId), apiclient.Request{})`)

	assert.Contains(t, src, "type Status string")
	assert.Contains(t, src, "StatusAvailable Status = \"available\"")
	assert.Contains(t, src, "StatusSold Status = \"sold\"")
	assert.Contains(t, src, "Id float64 `json:\"id\"`")
	assert.Contains(t, src, "// Display name.\n Name string `json:\"name\"`")
	assert.Contains(t, src, "Status *Status `json:\"status,omitempty\"`")
	assert.Contains(t, src, "Tags []string `json:\"tags,omitempty\"`")
	assert.NotContains(t, src, `"time"`)
}

func TestPrint_Flat(t *testing.T) {
	route := func(ns, fn, path string) *gen.Route {
		return &gen.Route{
			Name:     gen.OpName{Namespace: ns, Function: fn},
			Method:   spec.GET,
			Path:     path,
			URL:      gen.BuildURLTemplate(path, nil),
			Response: gen.Prim(gen.String),
		}
	}
	out := &gen.Output{
		ClassName:  "Store",
		ParseDates: true,
		Namespaces: []*gen.Namespace{
			{Name: "orders", Routes: []*gen.Route{route("orders", "list", "/orders")}},
			{Name: "users", Routes: []*gen.Route{route("users", "list", "/users"), route("users", "do", "/do")}},
		},
	}

	src := render(t, out)
	assert.Contains(t, src, "type Store struct {\n *apiclient.Client\n}")
	assert.Contains(t, src, "func NewStore(opts ...apiclient.ClientOption) *Store {")
	assert.Contains(t, src, "apiclient.WithParseDates(true),")
	assert.NotContains(t, src, "DefaultBaseURL")
	assert.Contains(t, src, "func (api *Store) List(ctx context.Context) (string, error) {")
	assert.Contains(t, src, "func (api *Store) UsersList(ctx context.Context) (string, error) {")
	assert.Contains(t, src, "func (api *Store) UsersDo(ctx context.Context) (string, error) {")
	assert.Contains(t, src, `apiclient.Fetch[string](ctx, api.Client, "get", "/users", apiclient.Request{})`)
}

func TestPrint_RequestShapes(t *testing.T) {
	search := &gen.Type{Kind: gen.Record, Fields: []*gen.Field{
		{Name: "page", Type: gen.Prim(gen.Number)},
		{Name: "since", Type: gen.Prim(gen.Time), Optional: true},
	}}
	body := &gen.Type{Kind: gen.Record, Fields: []*gen.Field{
		{Name: "file", Type: gen.Prim(gen.Binary)},
		{Name: "meta", Type: gen.MapOf(gen.Prim(gen.String)), Optional: true},
	}}
	resp := gen.ArrayOf(&gen.Type{Kind: gen.Record, Fields: []*gen.Field{
		{Name: "created-at", Type: gen.UnionOf(gen.Prim(gen.Time), gen.Prim(gen.Null))},
	}})
	renames := map[string]string{"id": "id", "type": "type_"}
	r := &gen.Route{
		Name:        gen.OpName{Namespace: "files", Function: "upload"},
		Method:      spec.POST,
		Path:        "/users/{id}/files/{type}",
		PathParams:  []*gen.Param{{Name: "id", Source: "id", Type: gen.Prim(gen.Number)}, {Name: "type_", Source: "type", Type: gen.Prim(gen.String)}},
		Search:      &gen.Param{Name: "search", Source: "search", Type: search, Required: true},
		Body:        &gen.Param{Name: "body", Source: "body", Type: body},
		ContentType: "multipart/form-data",
		Headers:     map[string]string{"content-type": "multipart/form-data"},
		URL:         gen.BuildURLTemplate("/users/{id}/files/{type}", renames),
		Response:    resp,
	}
	out := &gen.Output{
		ClassName:   "ApiClient",
		Namespacing: true,
		Namespaces:  []*gen.Namespace{{Name: "files", Routes: []*gen.Route{r}}},
	}

	src := render(t, out)
	assert.Contains(t, src, "func (api *ApiClientFiles) Upload(ctx context.Context, id float64, type_ string, search FilesUploadSearch, body FilesUploadBody) ([]FilesUploadResponseItem, error) {")
	assert.Contains(t, src, `"/users/"+apiclient.PathParam(id)+"/files/"+apiclient.PathParam(type_)`)
	assert.Contains(t, src, `apiclient.Request{Search: search, Body: body, Headers: map[string]string{"content-type": "multipart/form-data"}}`)
	assert.Contains(t, src, "Page float64 `json:\"page\"`")
	assert.Contains(t, src, "Since *time.Time `json:\"since,omitempty\"`")
	assert.Contains(t, src, "File []byte `json:\"file\"`")
	assert.Contains(t, src, "Meta map[string]string `json:\"meta,omitempty\"`")
	assert.Contains(t, src, "CreatedAt *time.Time `json:\"created-at\"`")
	assert.Contains(t, src, "\"time\"\n")
}

func TestPrint_Declarations(t *testing.T) {
	pet := &gen.Type{Kind: gen.Record, Fields: []*gen.Field{{Name: "name", Type: gen.Prim(gen.String)}}}
	dog := gen.IntersectionOf(gen.RefTo("Pet"), &gen.Type{Kind: gen.Record, Fields: []*gen.Field{
		{Name: "barks", Type: gen.Prim(gen.Boolean)},
	}})
	node := &gen.Type{Kind: gen.Record, Fields: []*gen.Field{
		{Name: "next", Type: gen.RefTo("Node")},
		{Name: "prev", Type: gen.RefTo("Node"), Optional: true},
		{Name: "pet", Type: gen.RefTo("Pet")},
	}}
	out := &gen.Output{
		ClassName: "ApiClient",
		Types: []gen.Decl{
			&gen.AliasDecl{Name: "Dog", Type: dog},
			&gen.AliasDecl{Name: "Kind", Type: gen.UnionOf(gen.StringLit("a"), gen.StringLit("b"))},
			&gen.AliasDecl{Name: "Mixed", Type: gen.UnionOf(gen.Prim(gen.String), gen.Prim(gen.Number))},
			&gen.AliasDecl{Name: "Node", Type: node},
			&gen.AliasDecl{Name: "Pet", Description: "Pet is an animal.", Type: pet},
			&gen.AliasDecl{Name: "PetRef", Type: gen.RefTo("Pet")},
			&gen.AliasDecl{Name: "Tree", Type: gen.ArrayOf(gen.RefTo("Tree"))},
			&gen.AliasDecl{Name: "Loose", Type: gen.IntersectionOf(gen.RefTo("Kind"), gen.Prim(gen.String))},
			&gen.AliasDecl{Name: "_1st", Type: gen.RefTo("Missing")},
			&gen.EnumDecl{Name: "Empty"},
		},
	}

	src := render(t, out)
	assert.Contains(t, src, "type Dog struct {\n Pet\n Barks bool `json:\"barks\"`\n}")
	assert.Contains(t, src, "type Kind string")
	assert.Contains(t, src, "type Mixed any")
	assert.Contains(t, src, "Next *Node `json:\"next\"`")
	assert.Contains(t, src, "Prev *Node `json:\"prev,omitempty\"`")
	assert.Contains(t, src, "Pet Pet `json:\"pet\"`")
	assert.Contains(t, src, "// Pet is an animal.\ntype Pet struct {")
	assert.Contains(t, src, "type PetRef = Pet")
	assert.Contains(t, src, "type Tree []Tree")
	assert.Contains(t, src, "type Loose any")
	assert.Contains(t, src, "type T1st = any")
	assert.Contains(t, src, "type Empty string")
}

func TestPrint_NameCollisions(t *testing.T) {
	out := &gen.Output{
		ClassName: "ApiClient",
		Types: []gen.Decl{
			&gen.AliasDecl{Name: "order_item", Type: gen.Prim(gen.String)},
			&gen.AliasDecl{Name: "OrderItem", Type: gen.Prim(gen.Number)},
			&gen.AliasDecl{Name: "ApiClient", Type: gen.Prim(gen.Boolean)},
			&gen.AliasDecl{Name: "Row", Type: &gen.Type{Kind: gen.Record, Fields: []*gen.Field{
				{Name: "a-b", Type: gen.Prim(gen.String)},
				{Name: "a_b", Type: gen.Prim(gen.String)},
			}}},
		},
	}

	src := render(t, out)
	assert.Contains(t, src, "type OrderItem string")
	assert.Contains(t, src, "type OrderItem2 float64")
	assert.Contains(t, src, "type ApiClient2 bool")
	assert.Contains(t, src, "AB string `json:\"a-b\"`")
	assert.Contains(t, src, "AB2 string `json:\"a_b\"`")
}

func TestGoName(t *testing.T) {
	cases := map[string]string{
		"listPets":     "ListPets",
		"order_item":   "OrderItem",
		"created-at":   "CreatedAt",
		"_1st":         "T1st",
		"":             "T",
		"already Good": "AlreadyGood",
	}
	for in, want := range cases {
		assert.Equal(t, want, goName(in), in)
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "a b", cleanDescription(" a\nb "))
	long := strings.Repeat("x", 300)
	got := cleanDescription(long)
	assert.Len(t, got, maxDescriptionLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}
