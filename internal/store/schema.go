package store

const Schema = `
CREATE TABLE IF NOT EXISTS record_labels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL COLLATE NOCASE UNIQUE
);

CREATE TABLE IF NOT EXISTS albums (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	release_year INTEGER,
	producer TEXT,
	record_label_id INTEGER REFERENCES record_labels(id),
	tracks TEXT NOT NULL DEFAULT '[]',  -- JSON array of track titles
	art_path TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Import matching is by case-insensitive (title, artist)
CREATE UNIQUE INDEX IF NOT EXISTS idx_albums_title_artist
	ON albums(title COLLATE NOCASE, artist COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS musicians (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL COLLATE NOCASE UNIQUE
);

CREATE TABLE IF NOT EXISTS persons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL COLLATE NOCASE UNIQUE
);

CREATE TABLE IF NOT EXISTS details (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL COLLATE NOCASE UNIQUE
);

-- Link tables: (album, entity, qualifier) is the uniqueness key, so the
-- same entity may appear on one album under different qualifiers.
CREATE TABLE IF NOT EXISTS album_musicians (
	album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	musician_id INTEGER NOT NULL REFERENCES musicians(id) ON DELETE CASCADE,
	instrument TEXT NOT NULL,
	PRIMARY KEY (album_id, musician_id, instrument)
);

CREATE TABLE IF NOT EXISTS album_personnel (
	album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	PRIMARY KEY (album_id, person_id, role)
);

CREATE TABLE IF NOT EXISTS album_details (
	album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	detail_id INTEGER NOT NULL REFERENCES details(id) ON DELETE CASCADE,
	detail_type TEXT NOT NULL,
	PRIMARY KEY (album_id, detail_id, detail_type)
);

CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS collection_albums (
	collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	PRIMARY KEY (collection_id, album_id)
);
`
