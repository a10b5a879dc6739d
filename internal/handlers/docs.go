package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Taxi Weather Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	dateParams := []map[string]interface{}{
		{
			"name":        "start_date",
			"in":          "query",
			"description": "Filter by start trip date (YYYY-MM-DD)",
			"required":    false,
			"schema":      map[string]string{"type": "string", "format": "date"},
		},
		{
			"name":        "end_date",
			"in":          "query",
			"description": "Filter by end trip date (YYYY-MM-DD)",
			"required":    false,
			"schema":      map[string]string{"type": "string", "format": "date"},
		},
		{
			"name":        "borough",
			"in":          "query",
			"description": "Filter by pickup borough",
			"required":    false,
			"schema":      map[string]string{"type": "string"},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Taxi Weather Platform API",
			"description": "Taxi trip and weather join platform with quality classification, incremental materialization, and aggregation views",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Taxi Weather Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/trips/daily": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get daily trip summaries",
					"description": "Per-day rollup over valid trip facts",
					"parameters":  dateParams,
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"trip_date":         map[string]string{"type": "string", "format": "date"},
												"total_trips":       map[string]string{"type": "integer"},
												"total_revenue":     map[string]interface{}{"type": "number", "nullable": true},
												"avg_distance":      map[string]interface{}{"type": "number", "nullable": true},
												"avg_duration_min":  map[string]interface{}{"type": "number", "nullable": true},
												"avg_fare_per_mile": map[string]interface{}{"type": "number", "nullable": true},
												"rainy_trips":       map[string]string{"type": "integer"},
											},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/trips/zones": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get pickup zone summaries",
					"description": "Per-pickup-zone rollup over valid trip facts",
					"parameters":  dateParams,
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"pu_location_id": map[string]string{"type": "integer"},
												"borough":        map[string]interface{}{"type": "string", "nullable": true},
												"total_trips":    map[string]string{"type": "integer"},
												"avg_fare":       map[string]interface{}{"type": "number", "nullable": true},
												"avg_distance":   map[string]interface{}{"type": "number", "nullable": true},
												"avg_tip_pct":    map[string]interface{}{"type": "number", "nullable": true},
											},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/trips/conditions": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get weather condition summaries",
					"description": "Per-weather-condition rollup over valid trip facts",
					"parameters":  dateParams,
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"weather_condition": map[string]string{"type": "string"},
												"total_trips":       map[string]string{"type": "integer"},
												"avg_fare":          map[string]interface{}{"type": "number", "nullable": true},
												"avg_distance":      map[string]interface{}{"type": "number", "nullable": true},
												"avg_duration_min":  map[string]interface{}{"type": "number", "nullable": true},
												"avg_tip_pct":       map[string]interface{}{"type": "number", "nullable": true},
											},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/quality": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get quality reports",
					"description": "Paginated quality report stream for pipeline runs",
					"parameters": []map[string]interface{}{
						{
							"name":        "run_id",
							"in":          "query",
							"description": "Filter by pipeline run ID",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "quality_tag",
							"in":          "query",
							"description": "Filter by quality tag",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"data": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "object",
													"properties": map[string]interface{}{
														"id":               map[string]string{"type": "integer"},
														"run_id":           map[string]string{"type": "string"},
														"vendor_id":        map[string]interface{}{"type": "integer", "nullable": true},
														"pickup_time":      map[string]interface{}{"type": "string", "format": "date-time", "nullable": true},
														"pu_location_id":   map[string]interface{}{"type": "integer", "nullable": true},
														"do_location_id":   map[string]interface{}{"type": "integer", "nullable": true},
														"trip_date":        map[string]interface{}{"type": "string", "format": "date", "nullable": true},
														"station_id":       map[string]interface{}{"type": "string", "nullable": true},
														"quality_tag":      map[string]string{"type": "string"},
														"completeness_tag": map[string]string{"type": "string"},
														"created_at":       map[string]string{"type": "string", "format": "date-time"},
													},
												},
											},
											"total":       map[string]string{"type": "integer"},
											"page":        map[string]string{"type": "integer"},
											"limit":       map[string]string{"type": "integer"},
											"total_pages": map[string]string{"type": "integer"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and database are reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"status": map[string]string{"type": "string"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
