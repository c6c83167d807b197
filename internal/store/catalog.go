package store

import "github.com/pefman/rose-manor/internal/models"

// DefaultItems is the item catalog seeded into a new store.
func DefaultItems() []models.Item {
	return []models.Item{
		{ID: "rose_bayonet", Name: "Rose Bayonet", Kind: "weapon", Rarity: "rare", Description: "A blade with a rose etched on the guard.", Strength: 8},
		{ID: "moon_dagger", Name: "Moon Dagger", Kind: "weapon", Rarity: "rare", Description: "Cold to the touch, even at noon.", Strength: 5, Agility: 3},
		{ID: "garden_shears", Name: "Garden Shears", Kind: "weapon", Rarity: "common", Description: "Rusted, but still sharp.", Strength: 4},
		{ID: "thorn_gauntlets", Name: "Thorn Gauntlets", Kind: "armor", Rarity: "uncommon", Description: "Leather gloves studded with thorns.", Strength: 2},
		{ID: "old_cloak", Name: "Old Cloak", Kind: "armor", Rarity: "common", Description: "Smells of damp earth.", Agility: 2},
		{ID: "rose_brooch", Name: "Rose Brooch", Kind: "accessory", Rarity: "uncommon", Description: "A silver brooch shaped like a rose.", Luck: 3},
		{ID: "lucky_coin", Name: "Lucky Coin", Kind: "accessory", Rarity: "uncommon", Description: "Both sides show heads.", Luck: 5},
		{ID: "healing_rose", Name: "Healing Rose", Kind: "consumable", Rarity: "common", Description: "Its scent closes wounds.", Healing: 30},
		{ID: "calming_sachet", Name: "Calming Sachet", Kind: "consumable", Rarity: "common", Description: "Dried lavender in linen.", Healing: 15},
		{ID: "yellowed_diary", Name: "Yellowed Diary", Kind: "clue", Rarity: "rare", Description: "The last pages are torn out."},
		{ID: "old_key", Name: "Old Key", Kind: "clue", Rarity: "rare", Description: "It opens something in the manor."},
	}
}

// DefaultLocations are the explorable areas of Little Rose Manor.
func DefaultLocations() []models.Location {
	return []models.Location{
		{ID: "room", Name: "Guest Room", Description: "Your room in Little Rose Manor."},
		{ID: "hotspring", Name: "Hot Spring", Description: "Steam hangs over the water."},
		{ID: "library", Name: "Library", Description: "Shelves of books nobody remembers buying."},
		{ID: "gym", Name: "Gym", Description: "Old equipment and a cracked mirror."},
		{ID: "cafe", Name: "Cafe", Description: "Cups are still warm, but no one is here."},
		{ID: "garden", Name: "Rose Garden", Description: "Roses bloom out of season."},
		{ID: "waterfall", Name: "Waterfall", Description: "The roar hides every other sound."},
		{ID: "camp", Name: "Camp", Description: "Ashes of a fire someone left in a hurry."},
	}
}
