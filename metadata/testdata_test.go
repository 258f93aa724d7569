package metadata

const sampleYAML = `
service: testcenter
entities:
  - name: country
    fields:
      - name: code
        type: string
        unique: true
        required: true
      - name: name
        type: string
  - name: user
    table: users
    fields:
      - name: name
        type: string
        unique: true
      - name: age
        type: integer
      - name: active
        type: boolean
      - name: country
        kind: relation
        related_type: country
`

func sampleDescriptors() []*EntityDescriptor {
	return []*EntityDescriptor{
		{
			Name:    "country",
			Service: "testcenter",
			Fields: []FieldDescriptor{
				{Name: "code", Type: TypeString, Unique: true, Required: true},
				{Name: "name", Type: TypeString},
			},
		},
		{
			Name:    "user",
			Service: "testcenter",
			Table:   "users",
			Fields: []FieldDescriptor{
				{Name: "name", Type: TypeString, Unique: true},
				{Name: "age", Type: TypeInteger},
				{Name: "active", Type: TypeBoolean},
				{Name: "country", Kind: KindRelation, RelatedType: "country"},
			},
		},
	}
}
