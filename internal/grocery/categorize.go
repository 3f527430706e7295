package grocery

import "strings"

// Category is the aisle an item is filed under.
type Category string

const (
	Produce      Category = "Produce"
	Dairy        Category = "Dairy"
	Meat         Category = "Meat"
	Bakery       Category = "Bakery"
	Frozen       Category = "Frozen"
	Pantry       Category = "Pantry"
	Beverages    Category = "Beverages"
	Snacks       Category = "Snacks"
	Household    Category = "Household"
	PersonalCare Category = "Personal Care"
	Other        Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	Produce, Dairy, Meat, Bakery, Frozen, Pantry, Beverages, Snacks, Household, PersonalCare, Other,
}

// ParseCategory returns the category named s, matched case-insensitively.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Categorize guesses the category of an item from its title: a whole-name
// match first, then the first keyword contained in the name. Unknown items
// are Other.
func Categorize(title string) Category {
	name := NormalizeTitle(title)
	if name == "" {
		return Other
	}
	if c, ok := byName[name]; ok {
		return c
	}
	for _, k := range keywords {
		for _, word := range k.words {
			if strings.Contains(name, word) {
				return k.category
			}
		}
	}
	return Other
}

var byName = func() map[string]Category {
	m := make(map[string]Category)
	for c, names := range names {
		for _, n := range names {
			m[n] = c
		}
	}
	return m
}()

var names = map[Category][]string{
	Produce: {
		"apple", "apples", "banana", "bananas", "orange", "oranges", "lemon", "lemons",
		"lime", "limes", "avocado", "avocados", "tomato", "tomatoes", "potato", "potatoes",
		"onion", "onions", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrots",
		"celery", "cucumber", "cucumbers", "peppers", "mushrooms", "corn", "grapes",
		"strawberries", "blueberries", "raspberries", "watermelon", "pineapple", "mango",
		"peaches", "pears", "cilantro", "basil", "parsley", "ginger", "jalapeño",
		"zucchini", "asparagus", "green beans",
	},
	Dairy: {
		"milk", "eggs", "butter", "cheese", "yogurt", "cream cheese", "sour cream",
		"heavy cream", "half and half", "cottage cheese",
	},
	Meat: {
		"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak", "salmon",
		"shrimp", "tuna", "fish", "ground beef", "ground turkey", "hot dogs", "deli meat",
		"lamb", "crab", "tilapia",
	},
	Bakery: {
		"bread", "bagels", "tortillas", "rolls", "buns", "muffins", "croissants", "pita",
	},
	Pantry: {
		"rice", "pasta", "flour", "sugar", "salt", "pepper", "oil", "olive oil", "vinegar",
		"soy sauce", "ketchup", "mustard", "mayonnaise", "honey", "peanut butter", "jam",
		"cereal", "oatmeal", "soup", "broth", "beans", "lentils", "nuts", "almonds",
		"spaghetti", "noodles", "maple syrup", "hot sauce", "salsa",
	},
	Frozen: {
		"ice cream", "frozen pizza", "frozen veggies", "frozen fruit", "frozen waffles", "popsicles",
	},
	Beverages: {
		"water", "juice", "coffee", "tea", "soda", "beer", "wine", "kombucha", "lemonade",
		"sparkling water",
	},
	Snacks: {
		"chips", "crackers", "cookies", "popcorn", "pretzels", "granola bars", "trail mix",
		"candy", "chocolate", "fruit snacks",
	},
	Household: {
		"paper towels", "toilet paper", "trash bags", "dish soap", "laundry detergent",
		"sponges", "aluminum foil", "plastic wrap", "ziplock bags", "light bulbs",
		"batteries", "napkins", "bleach",
	},
	PersonalCare: {
		"shampoo", "conditioner", "soap", "body wash", "toothpaste", "toothbrush",
		"deodorant", "lotion", "sunscreen", "floss", "razors", "tissues", "band-aids",
	},
}

// keywords is searched in order; multi-word keywords come before the
// single words they contain.
var keywords = []struct {
	category Category
	words    []string
}{
	{Meat, []string{"chicken breast", "chicken thigh", "chicken wing", "ground beef", "ground turkey", "deli meat", "pork chop", "hot dog", "steak", "salmon", "shrimp", "bacon", "sausage"}},
	{Dairy, []string{"cream cheese", "sour cream", "heavy cream", "cottage cheese", "half and half", "greek yogurt", "almond milk", "oat milk"}},
	{Produce, []string{"salad mix", "baby spinach", "green onion", "sweet potato", "bell pepper", "cherry tomato"}},
	{Bakery, []string{"sourdough", "whole wheat"}},
	{Pantry, []string{"peanut butter", "olive oil", "coconut oil", "maple syrup", "hot sauce", "soy sauce", "pasta sauce", "tomato sauce", "canned"}},
	{Frozen, []string{"frozen", "ice cream", "popsicle"}},
	{Beverages, []string{"sparkling water", "orange juice", "apple juice"}},
	{Snacks, []string{"granola bar", "trail mix", "fruit snack"}},
	{Household, []string{"paper towel", "toilet paper", "trash bag", "garbage bag", "dish soap", "plastic wrap", "light bulb"}},
	{PersonalCare, []string{"body wash", "band-aid"}},
	{Dairy, []string{"yogurt", "cheese", "milk", "butter", "cream", "egg"}},
	{Produce, []string{"romaine", "arugula", "cabbage", "cauliflower", "squash", "melon", "berry", "berries", "fruit", "herb", "lettuce", "spinach", "kale", "apple", "banana", "tomato", "potato", "onion", "pepper", "carrot", "celery"}},
	{Bakery, []string{"bread", "bagel", "tortilla", "bun", "roll", "muffin", "croissant"}},
	{Pantry, []string{"cereal", "oatmeal", "granola", "rice", "pasta", "noodle", "flour", "sugar", "spice", "seasoning", "sauce", "broth", "stock", "soup", "bean", "lentil"}},
	{Beverages, []string{"coffee", "tea", "juice", "soda", "water", "beer", "wine", "drink"}},
	{Snacks, []string{"chip", "cracker", "cookie", "popcorn", "pretzel", "candy", "chocolate", "snack"}},
	{Household, []string{"laundry", "detergent", "cleaner", "cleaning", "sponge", "foil", "ziplock", "battery"}},
	{PersonalCare, []string{"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant", "lotion", "sunscreen", "razor", "tissue"}},
}
