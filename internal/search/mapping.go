package search

// DefaultIndex holds product documents when no index name is configured.
const DefaultIndex = "storefront_products"

// indexMapping analyzes names for prefix matching and keeps filter fields
// as keywords.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase", "asciifolding"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":               { "type": "keyword" },
      "name":             { "type": "text", "analyzer": "english", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "slug":             { "type": "keyword" },
      "description":      { "type": "text", "analyzer": "english" },
      "category":         { "type": "keyword" },
      "niche":            { "type": "keyword" },
      "image_url":        { "type": "keyword", "index": false },
      "initial_price":    { "type": "long" },
      "discounted_price": { "type": "long" },
      "effective_price":  { "type": "long" },
      "currency":         { "type": "keyword" },
      "status":           { "type": "keyword" },
      "created_at":       { "type": "date" },
      "updated_at":       { "type": "date" }
    }
  }
}`
