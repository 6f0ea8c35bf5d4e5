package receipt

import (
	"sort"
	"strings"
	"unicode"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

type categoryKeywords struct {
	category string
	keywords []string
}

// defaultCategories is checked in order; the first category with a matching keyword wins.
var defaultCategories = []categoryKeywords{
	{"Dairy", []string{
		"organic a2", "a2 milk", "half & half", "greek yogurt", "sour cream", "cottage cheese",
		"whole milk", "skim milk", "almond milk", "soy milk", "oat milk", "coconut milk",
		"milk", "cheese", "butter", "yogurt", "cream", "dairy", "mozzarella", "cheddar",
		"parmesan", "swiss", "feta", "cream cheese", "ricotta",
	}},
	{"Grain", []string{
		"whole wheat", "white bread", "wheat bread", "sourdough", "multigrain",
		"bread", "wheat", "grain", "flour", "rice", "pasta", "noodle", "quinoa",
		"oats", "cereal", "bagel", "tortilla", "naan", "roti", "pita", "wraps",
		"buns", "rolls", "basmati", "jasmine rice", "brown rice", "white rice",
	}},
	{"Fruit", []string{
		"strawberry", "blueberry", "raspberry", "blackberry", "cranberry",
		"pineapple", "mango", "avocado", "grapefruit", "watermelon", "cantaloupe",
		"apple", "banana", "orange", "berry", "grape", "fruit", "fruits",
		"citrus", "peach", "pear", "plum", "kiwi", "lemon", "lime", "cherry",
	}},
	{"Vegetable", []string{
		"bell pepper", "green pepper", "red pepper", "broccoli", "cauliflower", "cucumber",
		"lettuce", "spinach", "tomato", "potato", "onion", "carrot", "pepper",
		"vegetable", "vegetables", "veggie", "veggies", "garlic", "ginger", "celery",
		"corn", "peas", "beans", "cabbage", "zucchini", "squash", "eggplant",
		"mushroom", "asparagus", "brussels sprouts",
	}},
	{"Meat & Seafood", []string{
		"ground beef", "ground turkey", "ground chicken", "chicken breast", "chicken thighs",
		"salmon", "tuna", "shrimp", "crab", "lobster", "tilapia", "cod", "halibut",
		"chicken", "beef", "pork", "fish", "meat", "seafood", "turkey", "lamb",
		"bacon", "sausage", "ham", "hot dog", "burger", "steak", "ribs",
	}},
	{"Herb", []string{
		"cilantro", "coriander", "basil", "parsley", "rosemary", "thyme", "mint",
		"oregano", "sage", "dill", "herb", "herbs", "chives", "tarragon",
	}},
	{"Daal", []string{
		"toor dal", "moong dal", "chana dal", "masoor dal", "urad dal",
		"daal", "dal", "lentil", "lentils", "pulse", "legume",
	}},
	{"Paste", []string{
		"toothpaste", "tomato paste", "garlic paste", "ginger paste", "curry paste",
		"paste", "tooth", "dental",
	}},
	{"Pooja item", []string{
		"pooja", "puja", "incense", "diya", "camphor", "kumkum", "agarbatti", "dhoop",
	}},
	{"Snacks", []string{
		"potato chips", "tortilla chips", "corn chips", "pretzel", "trail mix", "granola",
		"chips", "candy", "cookies", "snack", "snacks", "chocolate", "crackers",
		"nuts", "almond", "walnut", "peanut", "cashew", "pistachio",
	}},
	{"Syrup", []string{
		"maple syrup", "chocolate syrup", "caramel syrup",
		"syrup", "honey", "molasses", "agave", "jam", "jelly", "preserve",
	}},
	{"Body soap", []string{
		"body soap", "hand soap", "bar soap", "body wash", "shower gel", "liquid soap",
		"soap", "bath", "cleanser",
	}},
	{"Household", []string{
		"dish soap", "laundry detergent", "dishwasher detergent", "trash bag", "ziploc",
		"detergent", "tissue", "paper", "cleaner", "disinfectant", "bleach",
		"foil", "wrap", "sponge", "brush", "towel", "napkin", "toilet paper",
	}},
	{"Beverages", []string{
		"orange juice", "apple juice", "cranberry juice", "iced tea", "green tea",
		"juice", "soda", "water", "drink", "coffee", "tea", "beer", "wine",
		"beverage", "lemonade", "smoothie", "energy drink", "sports drink",
	}},
	{"Personal Care", []string{
		"hair shampoo", "body lotion", "face wash", "face moisturizer",
		"shampoo", "conditioner", "deodorant", "lotion", "moisturizer", "sunscreen",
		"razor", "toothbrush", "floss", "mouthwash", "toner", "serum", "cream",
	}},
}

// Categorizer assigns a category to an item name by keyword.
type Categorizer struct {
	categories []categoryKeywords
	fallback   string
}

// NewCategorizer returns a categorizer over the built-in keyword table.
func NewCategorizer(fallback string) *Categorizer {
	if fallback == "" {
		fallback = common.DefaultFallbackCategory
	}

	categories := make([]categoryKeywords, len(defaultCategories))
	for i, c := range defaultCategories {
		keywords := append([]string(nil), c.keywords...)
		sort.SliceStable(keywords, func(a, b int) bool {
			return len(keywords[a]) > len(keywords[b])
		})
		categories[i] = categoryKeywords{category: c.category, keywords: keywords}
	}

	return &Categorizer{categories: categories, fallback: fallback}
}

// Categorize returns the first category whose keyword appears in name. Multi-word
// keywords match as substrings, single words only as whole words.
func (c *Categorizer) Categorize(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if len(lower) < 2 || !hasLetter(lower) || looksLikeCode(lower) {
		return c.fallback
	}

	ws := words(lower)
	for _, category := range c.categories {
		for _, keyword := range category.keywords {
			if strings.ContainsRune(keyword, ' ') {
				if strings.Contains(lower, keyword) {
					return category.category
				}
				continue
			}
			for _, w := range ws {
				if w == keyword {
					return category.category
				}
			}
		}
	}
	return c.fallback
}

// Apply categorizes items still carrying the fallback category.
func (c *Categorizer) Apply(items []common.LineItem) []common.LineItem {
	out := make([]common.LineItem, len(items))
	for i, item := range items {
		if item.Category == "" || item.Category == c.fallback {
			item.Category = c.Categorize(item.Name)
		}
		out[i] = item
	}
	return out
}

// looksLikeCode catches OCR noise such as dates, counts or PIN prompts.
func looksLikeCode(s string) bool {
	if strings.Contains(s, "password") {
		return true
	}
	for _, w := range words(s) {
		if w == "pin" {
			return true
		}
	}
	first := []rune(s)[0]
	return unicode.IsDigit(first) && countPrefix.MatchString(strings.Fields(s)[0])
}
