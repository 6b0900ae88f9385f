// Package testbo holds the sample business object model used by tests:
// a contact person composed of addresses and associated with cars, each car
// aggregating its engines.
package testbo

import (
	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/collection"
	"github.com/ammar0144/bo4go/pkg/relationship"
	"github.com/ammar0144/bo4go/pkg/store"
)

var (
	ContactPersonDef = &bo.ClassDef{
		ClassName: "ContactPerson",
		Properties: []bo.PropDef{
			{Name: "ContactPersonID", AutoKey: true},
			{Name: "Surname"},
			{Name: "FirstName"},
			{Name: "Age", Default: 0},
		},
		PrimaryKey: []string{"ContactPersonID"},
	}

	AddressDef = &bo.ClassDef{
		ClassName: "Address",
		Properties: []bo.PropDef{
			{Name: "AddressID", AutoKey: true},
			{Name: "ContactPersonID"},
			{Name: "AddressLine1"},
		},
		PrimaryKey: []string{"AddressID"},
	}

	CarDef = &bo.ClassDef{
		ClassName: "Car",
		Properties: []bo.PropDef{
			{Name: "CarID", AutoKey: true},
			{Name: "OwnerID"},
			{Name: "Make"},
			{Name: "RegNo"},
		},
		PrimaryKey: []string{"CarID"},
	}

	EngineDef = &bo.ClassDef{
		ClassName: "Engine",
		Properties: []bo.PropDef{
			{Name: "EngineID", AutoKey: true},
			{Name: "CarID"},
			{Name: "EngineNo"},
		},
		PrimaryKey: []string{"EngineID"},
	}

	// AddressesRel composes a person's addresses
	AddressesRel = &relationship.Def{
		Name:         "Addresses",
		ReverseName:  "ContactPerson",
		Type:         relationship.Composition,
		OwnerClass:   "ContactPerson",
		RelatedClass: "Address",
		Keys:         []relationship.KeyPair{{OwnerProperty: "ContactPersonID", RelatedProperty: "ContactPersonID"}},
		OrderBy:      "AddressLine1",
	}

	// CarsRel associates a person with the cars they own
	CarsRel = &relationship.Def{
		Name:         "Cars",
		ReverseName:  "Owner",
		Type:         relationship.Association,
		OwnerClass:   "ContactPerson",
		RelatedClass: "Car",
		Keys:         []relationship.KeyPair{{OwnerProperty: "ContactPersonID", RelatedProperty: "OwnerID"}},
		OrderBy:      "RegNo",
	}

	// EnginesRel aggregates a car's engines
	EnginesRel = &relationship.Def{
		Name:         "Engines",
		ReverseName:  "Car",
		Type:         relationship.Aggregation,
		OwnerClass:   "Car",
		RelatedClass: "Engine",
		Keys:         []relationship.KeyPair{{OwnerProperty: "CarID", RelatedProperty: "CarID"}},
	}
)

// Env builds sample objects bound to one store. Owners created through an
// Env can be found again from a child's foreign key.
type Env struct {
	Store  store.DataStore
	Logger *zap.Logger

	// Relationships overrides the relationship definitions by name
	Relationships map[string]*relationship.Def

	people []*ContactPerson
	cars   []*Car
}

// NewEnv returns an Env on s
func NewEnv(s store.DataStore) *Env {
	return &Env{Store: s, Logger: zap.NewNop()}
}

func (e *Env) rel(def *relationship.Def) *relationship.Def {
	if d, ok := e.Relationships[def.Name]; ok {
		return d
	}
	return def
}

// ContactPerson is the root of the sample model
type ContactPerson struct {
	bo.Base
	addresses *collection.MultipleRelationship[*Address]
	cars      *collection.MultipleRelationship[*Car]
}

// NewContactPerson creates a new, unsaved person
func (e *Env) NewContactPerson() *ContactPerson {
	p := &ContactPerson{}
	p.Init(p, ContactPersonDef)
	p.addresses = collection.NewMultipleRelationship(p, e.rel(AddressesRel), collection.Options[*Address]{
		ClassDef: AddressDef, Factory: e.Addresses(), Store: e.Store, Logger: e.Logger,
	})
	p.cars = collection.NewMultipleRelationship(p, e.rel(CarsRel), collection.Options[*Car]{
		ClassDef: CarDef, Factory: e.Cars(), Store: e.Store, Logger: e.Logger,
	})
	e.people = append(e.people, p)
	return p
}

// ContactPeople returns the person factory
func (e *Env) ContactPeople() bo.Factory[*ContactPerson] {
	return bo.Factory[*ContactPerson]{New: e.NewContactPerson}
}

func (p *ContactPerson) Addresses() *collection.MultipleRelationship[*Address] { return p.addresses }
func (p *ContactPerson) Cars() *collection.MultipleRelationship[*Car]          { return p.cars }

func (p *ContactPerson) ID() any         { return p.Value("ContactPersonID") }
func (p *ContactPerson) Surname() string { s, _ := p.Value("Surname").(string); return s }

// Address belongs to exactly one person for life
type Address struct {
	bo.Base
	person *collection.SingleRelationship
}

// NewAddress creates a new, unsaved address
func (e *Env) NewAddress() *Address {
	a := &Address{}
	a.Init(a, AddressDef)
	a.person = collection.NewSingleRelationship(a, e.rel(AddressesRel), e.findPerson("ContactPersonID"))
	return a
}

// Addresses returns the address factory
func (e *Env) Addresses() bo.Factory[*Address] {
	return bo.Factory[*Address]{New: e.NewAddress}
}

func (a *Address) ContactPerson() *collection.SingleRelationship { return a.person }

// Car is associated with an owner and aggregates engines
type Car struct {
	bo.Base
	owner   *collection.SingleRelationship
	engines *collection.MultipleRelationship[*Engine]
}

// NewCar creates a new, unsaved car
func (e *Env) NewCar() *Car {
	c := &Car{}
	c.Init(c, CarDef)
	c.owner = collection.NewSingleRelationship(c, e.rel(CarsRel), e.findPerson("OwnerID"))
	c.engines = collection.NewMultipleRelationship(c, e.rel(EnginesRel), collection.Options[*Engine]{
		ClassDef: EngineDef, Factory: e.Engines(), Store: e.Store, Logger: e.Logger,
	})
	e.cars = append(e.cars, c)
	return c
}

// NewCarWithDef creates a car described by an alternate class definition
func (e *Env) NewCarWithDef(def *bo.ClassDef) *Car {
	c := e.NewCar()
	c.Init(c, def)
	return c
}

// Cars returns the car factory
func (e *Env) Cars() bo.Factory[*Car] {
	return bo.Factory[*Car]{New: e.NewCar, NewWithDef: e.NewCarWithDef}
}

func (c *Car) Owner() *collection.SingleRelationship             { return c.owner }
func (c *Car) Engines() *collection.MultipleRelationship[*Engine] { return c.engines }

// Engine can move between cars
type Engine struct {
	bo.Base
	car *collection.SingleRelationship
}

// NewEngine creates a new, unsaved engine
func (e *Env) NewEngine() *Engine {
	en := &Engine{}
	en.Init(en, EngineDef)
	en.car = collection.NewSingleRelationship(en, e.rel(EnginesRel), e.findCar("CarID"))
	return en
}

// Engines returns the engine factory
func (e *Env) Engines() bo.Factory[*Engine] {
	return bo.Factory[*Engine]{New: e.NewEngine}
}

func (en *Engine) Car() *collection.SingleRelationship { return en.car }

func (e *Env) findPerson(fkProp string) collection.Resolver {
	return func(fk bo.Row) (bo.BusinessObject, error) {
		for _, p := range e.people {
			if p.Value("ContactPersonID") == fk[fkProp] {
				return p, nil
			}
		}
		return nil, nil
	}
}

func (e *Env) findCar(fkProp string) collection.Resolver {
	return func(fk bo.Row) (bo.BusinessObject, error) {
		for _, c := range e.cars {
			if c.Value("CarID") == fk[fkProp] {
				return c, nil
			}
		}
		return nil, nil
	}
}
