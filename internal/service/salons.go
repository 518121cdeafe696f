package service

import (
	"slices"

	"github.com/digkill/prelook/internal/models"
)

// TimeSlots are the bookable appointment times offered by every salon.
var TimeSlots = []string{"10:00 AM", "1:00 PM", "3:30 PM", "5:00 PM"}

var salonCatalog = []models.Salon{
	{
		ID:             "looks-bbsr",
		Title:          "Looks Salon",
		URI:            "https://www.lookssalon.in",
		PriceRange:     "$$$",
		Specialty:      "Premium Styling & Makeover",
		AvailableSlots: 4,
		Distance:       "2.5 km",
		Rating:         4.8,
		Address:        "Janpath Road, Saheed Nagar, Bhubaneswar",
		Description:    "Premium beauty salon for men and women focused on complete makeovers.",
		ImageURL:       "https://images.unsplash.com/photo-1560066984-138dadb4c035?q=80&w=2574&auto=format&fit=crop",
		Stylists:       []string{"Rahul Sharma", "Priya Das", "Amit Verma"},
		Services: []models.SalonService{
			{ID: "l1", Name: "Director Cut (Men)", Duration: "45 min", Price: 800},
			{ID: "l2", Name: "Director Cut (Women)", Duration: "60 min", Price: 1500},
			{ID: "l3", Name: "Loreal Hair Spa", Duration: "90 min", Price: 2500},
			{ID: "l4", Name: "Global Color", Duration: "120 min", Price: 4000},
		},
	},
	{
		ID:             "toni-guy-bbsr",
		Title:          "Toni & Guy",
		URI:            "https://toniandguy.com",
		PriceRange:     "$$$$",
		Specialty:      "Creative Cuts & Texture",
		AvailableSlots: 2,
		Distance:       "5.1 km",
		Rating:         4.9,
		Address:        "Esplanade One Mall, Rasulgarh, Bhubaneswar",
		Description:    "Award winning hairdressing brand bringing London cuts and color to Bhubaneswar.",
		ImageURL:       "https://images.unsplash.com/photo-1633681926022-84c23e8cb2d6?q=80&w=2574&auto=format&fit=crop",
		Stylists:       []string{"Sandeep Singh", "Meera Nair", "John Doe"},
		Services: []models.SalonService{
			{ID: "t1", Name: "Creative Cut & Finish", Duration: "60 min", Price: 1800},
			{ID: "t2", Name: "Toni&Guy Signature Color", Duration: "150 min", Price: 5500},
			{ID: "t3", Name: "Keratin Smoothing", Duration: "180 min", Price: 7000},
			{ID: "t4", Name: "Beard Design", Duration: "30 min", Price: 600},
		},
	},
	{
		ID:             "habib-bbsr",
		Title:          "Jawed Habib Hair & Beauty",
		URI:            "http://jawedhabib.co.in",
		PriceRange:     "$$",
		Specialty:      "Scientific Haircuts",
		AvailableSlots: 8,
		Distance:       "1.2 km",
		Rating:         4.5,
		Address:        "IRC Village, Nayapalli, Bhubaneswar",
		Description:    "Hair and beauty chain known for easy-to-manage everyday styles.",
		ImageURL:       "https://images.unsplash.com/photo-1521590832167-7bcbfaa6381f?q=80&w=2670&auto=format&fit=crop",
		Stylists:       []string{"Manish Kumar", "Sneha Roy", "Rajesh"},
		Services: []models.SalonService{
			{ID: "h1", Name: "Standard Haircut", Duration: "30 min", Price: 350},
			{ID: "h2", Name: "Advanced Hair Styling", Duration: "45 min", Price: 600},
			{ID: "h3", Name: "Root Touch Up", Duration: "60 min", Price: 1200},
			{ID: "h4", Name: "Hair Botox", Duration: "120 min", Price: 3500},
		},
	},
	{
		ID:             "mayfair-bbsr",
		Title:          "Mayfair Spa & Salon",
		URI:            "https://www.mayfairhotels.com",
		PriceRange:     "$$$$$",
		Specialty:      "Luxury Spa & Styling",
		AvailableSlots: 1,
		Distance:       "3.0 km",
		Rating:         5.0,
		Address:        "Jaydev Vihar, Bhubaneswar",
		Description:    "Luxury salon blending holistic wellness with high-end styling.",
		ImageURL:       "https://images.unsplash.com/photo-1595476108010-b4d1f102b1b1?q=80&w=2666&auto=format&fit=crop",
		Stylists:       []string{"Vikram Oberoi", "Sarah Jones"},
		Services: []models.SalonService{
			{ID: "m1", Name: "Luxury Grooming Package", Duration: "90 min", Price: 4500},
			{ID: "m2", Name: "Bridal Makeover", Duration: "240 min", Price: 15000},
			{ID: "m3", Name: "Aromatherapy Hair Spa", Duration: "60 min", Price: 3000},
			{ID: "m4", Name: "Signature Mayfair Cut", Duration: "60 min", Price: 2000},
		},
	},
}

// SalonService serves the static partner salon catalog.
type SalonService struct{}

func NewSalonService() *SalonService {
	return &SalonService{}
}

func (s *SalonService) List() []models.Salon {
	return slices.Clone(salonCatalog)
}

func (s *SalonService) Get(id string) (models.Salon, bool) {
	for _, salon := range salonCatalog {
		if salon.ID == id {
			return salon, true
		}
	}
	return models.Salon{}, false
}

func (s *SalonService) FindService(salon models.Salon, serviceID string) (models.SalonService, bool) {
	for _, svc := range salon.Services {
		if svc.ID == serviceID {
			return svc, true
		}
	}
	return models.SalonService{}, false
}
