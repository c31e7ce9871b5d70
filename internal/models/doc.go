// package models defines the data model for the watch history ingestion service
package models
