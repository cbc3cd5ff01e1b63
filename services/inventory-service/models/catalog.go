package models

// Catalog enumerations for the clothing store. Each type exposes Valid so
// request payloads can be checked before they reach the aggregate.

type Category string

const (
	CategoryTops        Category = "TOPS"
	CategoryBottoms     Category = "BOTTOMS"
	CategoryDresses     Category = "DRESSES"
	CategoryOuterwear   Category = "OUTERWEAR"
	CategoryFootwear    Category = "FOOTWEAR"
	CategoryUnderwear   Category = "UNDERWEAR"
	CategoryAccessories Category = "ACCESSORIES"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTops, CategoryBottoms, CategoryDresses, CategoryOuterwear,
		CategoryFootwear, CategoryUnderwear, CategoryAccessories:
		return true
	}
	return false
}

type Gender string

const (
	GenderMen    Gender = "MEN"
	GenderWomen  Gender = "WOMEN"
	GenderUnisex Gender = "UNISEX"
	GenderKids   Gender = "KIDS"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMen, GenderWomen, GenderUnisex, GenderKids:
		return true
	}
	return false
}

type Size string

const (
	SizeXS      Size = "XS"
	SizeS       Size = "S"
	SizeM       Size = "M"
	SizeL       Size = "L"
	SizeXL      Size = "XL"
	SizeXXL     Size = "XXL"
	SizeOneSize Size = "ONE_SIZE"
)

func (s Size) Valid() bool {
	switch s {
	case SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL, SizeOneSize:
		return true
	}
	return false
}

type Fabric string

const (
	FabricCotton    Fabric = "COTTON"
	FabricLinen     Fabric = "LINEN"
	FabricWool      Fabric = "WOOL"
	FabricSilk      Fabric = "SILK"
	FabricPolyester Fabric = "POLYESTER"
	FabricDenim     Fabric = "DENIM"
	FabricLeather   Fabric = "LEATHER"
	FabricOther     Fabric = "OTHER"
)

func (f Fabric) Valid() bool {
	switch f {
	case FabricCotton, FabricLinen, FabricWool, FabricSilk,
		FabricPolyester, FabricDenim, FabricLeather, FabricOther:
		return true
	}
	return false
}

// AccessoryType only applies to items in CategoryAccessories.
type AccessoryType string

const (
	AccessoryBag        AccessoryType = "BAG"
	AccessoryBelt       AccessoryType = "BELT"
	AccessoryHat        AccessoryType = "HAT"
	AccessoryScarf      AccessoryType = "SCARF"
	AccessoryJewelry    AccessoryType = "JEWELRY"
	AccessorySunglasses AccessoryType = "SUNGLASSES"
	AccessoryOther      AccessoryType = "OTHER"
)

func (a AccessoryType) Valid() bool {
	switch a {
	case AccessoryBag, AccessoryBelt, AccessoryHat, AccessoryScarf,
		AccessoryJewelry, AccessorySunglasses, AccessoryOther:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusActive       ItemStatus = "ACTIVE"
	ItemStatusDiscontinued ItemStatus = "DISCONTINUED"
)

func (s ItemStatus) Valid() bool {
	return s == ItemStatusActive || s == ItemStatusDiscontinued
}

// AdjustmentReason explains an on-hand or reserved quantity change.
type AdjustmentReason string

const (
	ReasonRestock    AdjustmentReason = "RESTOCK"
	ReasonShrinkage  AdjustmentReason = "SHRINKAGE"
	ReasonCorrection AdjustmentReason = "CORRECTION"
	ReasonReturn     AdjustmentReason = "RETURN"

	// Set by the reservation flows, never accepted from callers.
	ReasonReservationReleased AdjustmentReason = "RESERVATION_RELEASED"
	ReasonReservationConsumed AdjustmentReason = "RESERVATION_CONSUMED"
)

// Manual reports whether callers may submit the reason with a stock adjustment.
func (r AdjustmentReason) Manual() bool {
	switch r {
	case ReasonRestock, ReasonShrinkage, ReasonCorrection, ReasonReturn:
		return true
	}
	return false
}
