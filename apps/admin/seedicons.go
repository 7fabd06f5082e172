package main

// defaultIcons is the catalog shown on the login screen; a PIN is any
// ordered pick of 4.
var defaultIcons = []struct {
	name string
	path string
}{
	{"star", "⭐"},
	{"heart", "❤️"},
	{"dog", "🐶"},
	{"cat", "🐱"},
	{"fish", "🐟"},
	{"tree", "🌳"},
	{"sun", "☀️"},
	{"moon", "🌙"},
	{"rocket", "🚀"},
	{"ball", "⚽"},
	{"apple", "🍎"},
	{"cake", "🎂"},
}

func (cli *commandLine) seedIcons() error {
	for i, icon := range defaultIcons {
		_, err := cli.db.Exec(
			`INSERT INTO icon (name, icon_path, display_order)
			 SELECT $1, $2, $3
			 WHERE NOT EXISTS (SELECT 1 FROM icon WHERE name = $1)`,
			icon.name, icon.path, i+1)
		if err != nil {
			return err
		}
	}
	logger.Printf("icon catalog seeded (%d icons)\n", len(defaultIcons))
	return nil
}
