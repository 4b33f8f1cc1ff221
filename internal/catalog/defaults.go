package catalog

import "github.com/shopspring/decimal"

type category struct {
	slug    string
	label   string
	options []option
}

type option struct {
	slug  string
	label string
	price int64
}

var defaultCategories = []category{
	{slug: "graphic-design", label: "Graphic Design", options: []option{
		{"branding", "Branding", 1},
		{"logo-design", "Logo Design", 100},
		{"package-design", "Package Design", 399},
	}},
	{slug: "web-development", label: "Web Development", options: []option{
		{"api-integration", "API Integration", 399},
		{"mob-app-development", "Mobile App Development", 2000},
		{"custom-cms", "Custom CMS Development", 2499},
		{"frontend", "Frontend Development", 999},
		{"backend", "Backend Solutions", 1499},
	}},
	{slug: "cyber-security", label: "Cyber Security", options: []option{
		{"network-security", "Network Security", 499},
		{"cloud-security", "Cloud Security", 999},
		{"application-security", "Application Security", 199},
	}},
	{slug: "cloud-computing", label: "Cloud Computing", options: []option{
		{"cloud-backup", "Cloud Backup", 199},
		{"cloud-storage", "Cloud Storage", 299},
		{"cloud-hosting", "Cloud Hosting", 499},
	}},
	{slug: "digital-marketing", label: "Digital Marketing", options: []option{
		{"seo-services", "SEO Services", 399},
		{"social-media", "Social Media Marketing", 299},
		{"content-marketing", "Content Marketing", 499},
	}},
}

// DefaultEntries returns the services offered on the checkout form.
func DefaultEntries() []Entry {
	var out []Entry
	for _, c := range defaultCategories {
		for _, o := range c.options {
			out = append(out, Entry{
				Category:      c.slug,
				CategoryLabel: c.label,
				SubOption:     o.slug,
				Label:         o.label,
				Price:         decimal.NewFromInt(o.price),
			})
		}
	}
	return out
}

// Default returns the catalog built from DefaultEntries.
func Default() *Catalog {
	return MustNew(DefaultEntries())
}
