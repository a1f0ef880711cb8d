package testutil

import "github.com/roach88/qindex/internal/ir"

// Qualified names of the fixture model.
var (
	QName       = ir.QName("Named", "name")
	QAge        = ir.QName("Person", "age")
	QScore      = ir.QName("Person", "score")
	QActive     = ir.QName("Person", "active")
	QBorn       = ir.QName("Person", "born")
	QNums       = ir.QName("Person", "nums")
	QMatrix     = ir.QName("Person", "matrix")
	QColor      = ir.QName("Person", "color")
	QColors     = ir.QName("Person", "colors")
	QAddress    = ir.QName("Person", "address")
	QAddresses  = ir.QName("Person", "addresses")
	QSecret     = ir.QName("Person", "secret")
	QBlob       = ir.QName("Person", "blob")
	QEmployer   = ir.QName("Person", "employer")
	QFriend     = ir.QName("Person", "friend")
	QFriends    = ir.QName("Person", "friends")
	QTitle      = ir.QName("Employee", "title")
	QCompCity   = ir.QName("Company", "city")
	QOwner      = ir.QName("Company", "owner")
	QParent     = ir.QName("Company", "parent")
	QStreet     = ir.QName("Address", "street")
	QCity       = ir.QName("Address", "city")
	QAddrTags   = ir.QName("Address", "tags")
	QAddrPlace  = ir.QName("Address", "geo")
	QLatitude   = ir.QName("Geo", "lat")
	QLongitude  = ir.QName("Geo", "lon")
	ColorRed    = ir.IREnum{Type: "Color", Constant: "RED"}
	ColorGreen  = ir.IREnum{Type: "Color", Constant: "GREEN"}
	ColorBlue   = ir.IREnum{Type: "Color", Constant: "BLUE"}
	PersonType  = "Person"
	EmployeeTyp = "Employee"
	CompanyType = "Company"
	NamedType   = "Named"
)

func prop(q ir.QualifiedName, t ir.TypeRef) ir.PropertyDescriptor {
	return ir.PropertyDescriptor{QName: q, Type: t, Queryable: true}
}

func assoc(q ir.QualifiedName, target string) ir.AssociationDescriptor {
	return ir.AssociationDescriptor{QName: q, TargetType: target, Queryable: true}
}

func personProperties() []ir.PropertyDescriptor {
	return []ir.PropertyDescriptor{
		prop(QName, ir.PrimitiveType(ir.PrimString)),
		prop(QAge, ir.PrimitiveType(ir.PrimInt)),
		prop(QScore, ir.PrimitiveType(ir.PrimFloat)),
		prop(QActive, ir.PrimitiveType(ir.PrimBool)),
		prop(QBorn, ir.PrimitiveType(ir.PrimTime)),
		prop(QNums, ir.CollectionOf(ir.PrimitiveType(ir.PrimInt))),
		prop(QMatrix, ir.CollectionOf(ir.CollectionOf(ir.PrimitiveType(ir.PrimInt)))),
		prop(QColor, ir.EnumType("Color")),
		prop(QColors, ir.CollectionOf(ir.EnumType("Color"))),
		prop(QAddress, ir.CompositeType("Address")),
		prop(QAddresses, ir.CollectionOf(ir.CompositeType("Address"))),
		{QName: QSecret, Type: ir.PrimitiveType(ir.PrimString), Queryable: false},
		prop(QBlob, ir.Unsupported("bytes")),
	}
}

func personAssociations() ([]ir.AssociationDescriptor, []ir.AssociationDescriptor) {
	return []ir.AssociationDescriptor{
			assoc(QEmployer, CompanyType),
			assoc(QFriend, PersonType),
		}, []ir.AssociationDescriptor{
			assoc(QFriends, PersonType),
		}
}

// FixtureModel returns the model shared by package tests.
//
//	Named            (interface)   name
//	Person  : Named                age score active born nums matrix color colors
//	                               address addresses secret(hidden) blob(unsupported)
//	                               employer->Company friend->Person friends->*Person
//	Employee: Person               title
//	Company : Named                city owner->Person parent->Company
//	Address (composite)            street city tags geo
//	Geo     (composite)            lat lon
//	Color   (enum)                 RED GREEN BLUE
func FixtureModel() ir.Model {
	pAssoc, pMany := personAssociations()
	eAssoc, eMany := personAssociations()
	return ir.Model{
		Entities: []ir.EntityDescriptor{
			{
				Name:             PersonType,
				Supertypes:       []string{NamedType},
				Properties:       personProperties(),
				Associations:     pAssoc,
				ManyAssociations: pMany,
			},
			{
				Name:             EmployeeTyp,
				Supertypes:       []string{PersonType},
				Properties:       append(personProperties(), prop(QTitle, ir.PrimitiveType(ir.PrimString))),
				Associations:     eAssoc,
				ManyAssociations: eMany,
			},
			{
				Name:       CompanyType,
				Supertypes: []string{NamedType},
				Properties: []ir.PropertyDescriptor{
					prop(QName, ir.PrimitiveType(ir.PrimString)),
					prop(QCompCity, ir.PrimitiveType(ir.PrimString)),
				},
				Associations: []ir.AssociationDescriptor{
					assoc(QOwner, PersonType),
					assoc(QParent, CompanyType),
				},
			},
		},
		Composites: []ir.CompositeDescriptor{
			{
				Name: "Address",
				Properties: []ir.PropertyDescriptor{
					prop(QStreet, ir.PrimitiveType(ir.PrimString)),
					prop(QCity, ir.PrimitiveType(ir.PrimString)),
					prop(QAddrTags, ir.CollectionOf(ir.PrimitiveType(ir.PrimString))),
					prop(QAddrPlace, ir.CompositeType("Geo")),
				},
			},
			{
				Name: "Geo",
				Properties: []ir.PropertyDescriptor{
					prop(QLatitude, ir.PrimitiveType(ir.PrimFloat)),
					prop(QLongitude, ir.PrimitiveType(ir.PrimFloat)),
				},
			},
		},
		Enums: []ir.EnumDescriptor{
			{Name: "Color", Constants: []string{"RED", "GREEN", "BLUE"}},
		},
	}
}
