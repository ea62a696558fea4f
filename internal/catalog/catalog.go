package catalog

import (
	"errors"
)

var ErrUnknownReward = errors.New("unknown reward")

type Category string

const (
	Gastronomy    Category = "gastronomy"
	Entertainment Category = "entertainment"
	Shopping      Category = "shopping"
	Products      Category = "products"
	Wellness      Category = "wellness"
	Technology    Category = "technology"
)

// Categories lists every category in display order.
var Categories = []Category{Gastronomy, Entertainment, Shopping, Products, Wellness, Technology}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Icon identifies the artwork the client draws for an entry.
type Icon string

const (
	IconCoffee      Icon = "coffee"
	IconGift        Icon = "gift"
	IconShoppingBag Icon = "shopping-bag"
	IconUtensils    Icon = "utensils"
	IconTicket      Icon = "ticket"
)

type Entry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PointsCost  int      `json:"points"`
	Category    Category `json:"category"`
	Icon        Icon     `json:"icon"`
}

var entries = []Entry{
	{ID: "1", Name: "Free Coffee", Description: "A coffee of your choice at any partner café", PointsCost: 100, Category: Gastronomy, Icon: IconCoffee},
	{ID: "2", Name: "Eco Book", Description: "A book about sustainability and the environment of your choice", PointsCost: 120, Category: Entertainment, Icon: IconGift},
	{ID: "3", Name: "20% Off at Organic Store", Description: "20% off your next purchase at partner stores", PointsCost: 150, Category: Shopping, Icon: IconShoppingBag},
	{ID: "4", Name: "15% Off Sustainable Fashion", Description: "Discount on clothes and accessories from sustainable brands", PointsCost: 180, Category: Shopping, Icon: IconShoppingBag},
	{ID: "5", Name: "Cinema Ticket", Description: "One matinée ticket for any film", PointsCost: 200, Category: Entertainment, Icon: IconTicket},
	{ID: "6", Name: "2-for-1 Lunch", Description: "Bring a friend, the second lunch is free at eco-friendly restaurants", PointsCost: 250, Category: Gastronomy, Icon: IconUtensils},
	{ID: "7", Name: "Premium Recycling Kit", Description: "Colour-coded bins and a recycling guide", PointsCost: 300, Category: Products, Icon: IconGift},
	{ID: "8", Name: "Premium Reusable Bottle", Description: "High quality insulated stainless steel bottle", PointsCost: 350, Category: Products, Icon: IconGift},
	{ID: "9", Name: "Yoga Class", Description: "A yoga or meditation session at partner studios", PointsCost: 400, Category: Wellness, Icon: IconGift},
	{ID: "10", Name: "Eco Products Set", Description: "Ecological cleaning and personal care products", PointsCost: 450, Category: Products, Icon: IconGift},
	{ID: "11", Name: "Urban Gardening Kit", Description: "Everything needed to start a vegetable garden at home", PointsCost: 500, Category: Products, Icon: IconGift},
	{ID: "12", Name: "Eco Concert Ticket", Description: "General admission to eco-friendly music events", PointsCost: 550, Category: Entertainment, Icon: IconTicket},
	{ID: "13", Name: "Relaxing Massage", Description: "A 60 minute massage at a partner spa", PointsCost: 600, Category: Wellness, Icon: IconGift},
	{ID: "14", Name: "Urban Bicycle", Description: "A quality city bike for sustainable commuting", PointsCost: 700, Category: Technology, Icon: IconGift},
	{ID: "15", Name: "Portable Solar Panel", Description: "Latest generation portable solar charger for your devices", PointsCost: 800, Category: Technology, Icon: IconGift},
}

// All returns a copy of the catalog.
func All() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// ByCategory returns the entries of c, or the whole catalog when c is empty.
func ByCategory(c Category) []Entry {
	if c == "" {
		return All()
	}
	var out []Entry
	for _, e := range entries {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func Get(id string) (Entry, error) {
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrUnknownReward
}
