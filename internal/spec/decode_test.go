package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore = `openapi: 3.1.0
info:
  title: Pets
  version: "2.0"
servers:
  - url: https://api.example.com/v1
paths:
  /pets/{petId}:
    parameters:
      - $ref: "#/components/parameters/PetId"
    get:
      tags: [pets]
      operationId: getPet
      responses:
        "404":
          description: missing
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Pet"
    delete:
      tags: [pets]
      responses:
        "204":
          description: gone
  /pets:
    post:
      tags: [pets]
      requestBody:
        content:
          application/json; charset=utf-8:
            schema:
              $ref: "#/components/schemas/Pet"
      responses:
        "201":
          description: created
components:
  parameters:
    PetId:
      name: petId
      in: path
      required: true
      schema:
        type: integer
        format: int64
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name: { type: string }
        age: { type: integer }
        tag: { type: [string, "null"] }
        status:
          type: string
          enum: [available, sold]
        meta:
          type: object
          additionalProperties: { type: string }
        "a/b": { type: boolean }
`

func TestParse_Order(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(petstore))
	require.NoError(t, err)

	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Equal(t, "Pets", doc.Info.Title)
	require.Len(t, doc.Servers, 1)
	require.Len(t, doc.Paths, 2)
	assert.Equal(t, "/pets/{petId}", doc.Paths[0].Path)
	assert.Equal(t, "/pets", doc.Paths[1].Path)

	var methods []HttpMethod
	doc.Paths[0].Each(func(m HttpMethod, _ *Operation) { methods = append(methods, m) })
	assert.Equal(t, []HttpMethod{GET, DELETE}, methods)

	get := doc.Paths[0].Operations[GET]
	require.Len(t, get.Responses, 2)
	assert.Equal(t, "404", get.Responses[0].Status)
	assert.Equal(t, "200", get.Responses[1].Status)

	pet := doc.Schemas["Pet"]
	require.NotNil(t, pet)
	assert.Equal(t, KindObject, pet.Kind)
	var names []string
	for _, p := range pet.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"name", "age", "tag", "status", "meta", "a/b"}, names)
	assert.True(t, pet.IsRequired("name"))
	assert.False(t, pet.IsRequired("age"))
}

func TestParse_SchemaKinds(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(petstore))
	require.NoError(t, err)
	props := map[string]*Schema{}
	for _, p := range doc.Schemas["Pet"].Properties {
		props[p.Name] = p.Schema
	}

	assert.Equal(t, KindNumber, props["age"].Kind, "integer folds into number")
	assert.Equal(t, "number", props["age"].Type)
	assert.Equal(t, KindTypeList, props["tag"].Kind)
	assert.Equal(t, []string{"string", "null"}, props["tag"].Types)
	assert.Equal(t, []any{"available", "sold"}, props["status"].Enum)
	require.NotNil(t, props["meta"].AdditionalProperties)
	assert.Equal(t, KindString, props["meta"].AdditionalProperties.Kind)
}

func TestParse_Unsupported(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(`{"openapi": "3.0.0", "components": {"schemas": {` +
		`"F": {"type": "file"}, "E": {"enum": [1, 2]}, "O": {"properties": {"x": {}}}, ` +
		`"U": {"oneOf": [{"type": "string"}, {"$ref": "#/components/schemas/F"}]}}}}`))
	require.NoError(t, err)

	assert.Equal(t, KindUnsupported, doc.Schemas["F"].Kind)
	assert.Equal(t, KindAny, doc.Schemas["E"].Kind)
	assert.Equal(t, []any{1.0, 2.0}, doc.Schemas["E"].Enum)
	assert.Equal(t, KindObject, doc.Schemas["O"].Kind)
	u := doc.Schemas["U"]
	assert.Equal(t, KindOneOf, u.Kind)
	require.Len(t, u.Variants, 2)
	assert.Equal(t, KindRef, u.Variants[1].Kind)
}

func TestParse_RejectsNonObject(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`- a`))
	require.Error(t, err)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ParseError, se.Code)
}
